package camera

import (
	"context"
	"fmt"

	"imx662-go/drivers/imx662"
)

func init() {
	RegisterBuilder("imx662", BuilderFunc(buildIMX662))
}

// pinPower drives the sensor XCLR line as its power switch.
type pinPower struct{ pin Pin }

func (p pinPower) PowerOn(context.Context) error  { p.pin.Set(true); return nil }
func (p pinPower) PowerOff(context.Context) error { p.pin.Set(false); return nil }

func buildIMX662(in BuildInput) (BuildOutput, error) {
	d := in.Device
	i2c, ok := in.Platform.I2C(d.Bus)
	if !ok {
		return BuildOutput{}, fmt.Errorf("unknown i2c bus %q", d.Bus)
	}
	sel, err := dataRateSelector(d.DataRateMbps)
	if err != nil {
		return BuildOutput{}, err
	}
	sync, err := parseSync(d.Sync)
	if err != nil {
		return BuildOutput{}, err
	}
	op, err := parseOperation(d.Operation)
	if err != nil {
		return BuildOutput{}, err
	}

	cfg := imx662.DefaultConfig()
	if d.Addr != 0 {
		cfg.Address = d.Addr
	}
	cfg.Board = imx662.BoardConfig{Lanes: d.Lanes, DataRate: sel, Mono: d.Mono}
	if cfg.Board.Lanes == 0 {
		cfg.Board.Lanes = 4
	}
	cfg.HCG = d.HCG
	cfg.VerifyChipID = d.VerifyChipID
	cfg.SyncMode = sync
	cfg.OperationMode = op
	cfg.Logger = in.Logger
	if d.ResetPin != nil && *d.ResetPin >= 0 {
		pin, ok := in.Platform.Pin(*d.ResetPin)
		if !ok {
			return BuildOutput{}, fmt.Errorf("unknown reset pin %d", *d.ResetPin)
		}
		pin.Set(false)
		cfg.Power = pinPower{pin: pin}
	}

	dev, err := imx662.New(i2c, cfg)
	if err != nil {
		return BuildOutput{}, err
	}
	return BuildOutput{Device: dev, Sensor: "imx662", Addr: cfg.Address}, nil
}
