package lorasniffer

import (
	"fmt"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/rpi"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

type embdBus struct {
	embd.SPIBus
}

func (b *embdBus) Close() error {
	err := b.SPIBus.Close()
	embd.CloseSPI()
	return err
}

// OpenEmbdBus opens SPI chip select channel at speed Hz, mode 0.
func OpenEmbdBus(channel byte, speed int) (Bus, error) {
	if err := embd.InitSPI(); err != nil {
		return nil, fmt.Errorf("failed to initialise SPI: %w", err)
	}
	return &embdBus{embd.NewSPIBus(embd.SPIMode0, channel, speed, 8, 0)}, nil
}

type embdPin struct {
	embd.DigitalPin
}

func (p *embdPin) Close() error {
	err := p.DigitalPin.Close()
	embd.CloseGPIO()
	return err
}

// OpenEmbdPin opens a GPIO output (BCM numbering).
func OpenEmbdPin(n int) (Pin, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("failed to initialise GPIO: %w", err)
	}
	pin, err := embd.NewDigitalPin(n)
	if err != nil {
		return nil, err
	}
	if err := pin.SetDirection(embd.Out); err != nil {
		pin.Close()
		return nil, err
	}
	return &embdPin{pin}, nil
}

type periphBus struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenPeriphBus opens the named SPI port through periph. An empty name picks
// the first port available.
func OpenPeriphBus(name string, hz int64) (Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", name, err)
	}
	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI port %q: %w", name, err)
	}
	return &periphBus{port: port, conn: conn}, nil
}

func (b *periphBus) TransferAndReceiveData(data []byte) error {
	read := make([]byte, len(data))
	if err := b.conn.Tx(data, read); err != nil {
		return err
	}
	copy(data, read)
	return nil
}

func (b *periphBus) Close() error {
	return b.port.Close()
}

type periphPin struct {
	pin gpio.PinIO
}

// OpenPeriphPin looks up a GPIO by name, e.g. "GPIO25".
func OpenPeriphPin(name string) (Pin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise periph: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("no such GPIO: %s", name)
	}
	return &periphPin{pin: pin}, nil
}

func (p *periphPin) Write(val int) error {
	return p.pin.Out(gpio.Level(val != 0))
}

func (p *periphPin) Close() error {
	return p.pin.Halt()
}
