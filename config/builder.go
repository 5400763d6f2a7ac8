package config

import (
	"github.com/jpalmerr/heartboard"
	"github.com/jpalmerr/heartboard/telemetry"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger and error reporter are left to the caller.
func BuildOptions(cfg *Config) ([]heartboard.Option, error) {
	schema, err := telemetry.SchemaByName(cfg.Schema)
	if err != nil {
		return nil, err
	}

	opts := []heartboard.Option{
		heartboard.WithTitle(cfg.Title),
		heartboard.WithPort(cfg.Port),
		heartboard.WithPollInterval(cfg.PollInterval.Duration()),
		heartboard.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		heartboard.WithSchema(schema),
		heartboard.WithDisplay(buildDisplay(cfg.Display)),
	}

	if cfg.Source.URL != "" {
		opts = append(opts, heartboard.WithSourceURL(cfg.Source.URL))
	} else {
		opts = append(opts, heartboard.WithSourceHost(cfg.Source.Host, cfg.Source.Port))
	}

	if a := cfg.Actuator; a != nil {
		opts = append(opts, heartboard.WithModbusActuator(heartboard.ModbusConfig{
			Endpoint: a.Endpoint,
			UnitID:   uint8(a.UnitID),
			Coil:     uint16(a.Coil),
			Register: uint16(a.Register),
			Timeout:  a.Timeout.Duration(),
		}))
	}

	if len(cfg.AllowedOrigins) > 0 {
		opts = append(opts, heartboard.WithAllowedOrigins(cfg.AllowedOrigins...))
	}

	return opts, nil
}

// buildDisplay overlays the configured display values on the defaults.
func buildDisplay(dc DisplayConfig) heartboard.Display {
	d := heartboard.DefaultDisplay()

	if dc.Width != 0 {
		d.Width = dc.Width
	}
	if dc.Height != 0 {
		d.Height = dc.Height
	}
	if dc.FrameRate != 0 {
		d.FrameRate = dc.FrameRate
	}
	if dc.HeartRateFont != "" {
		d.HeartRateFont = dc.HeartRateFont
	}
	if dc.HeartRateFontSize != 0 {
		d.HeartRateFontSize = dc.HeartRateFontSize
	}
	if dc.HintFont != "" {
		d.HintFont = dc.HintFont
	}
	if dc.HintFontSize != 0 {
		d.HintFontSize = dc.HintFontSize
	}

	lc := dc.LoadingCircle
	if lc.Radius != 0 {
		d.LoadingCircle.Radius = lc.Radius
	}
	if lc.Period != 0 {
		d.LoadingCircle.Period = lc.Period.Duration()
	}
	if lc.StrokeWeight != 0 {
		d.LoadingCircle.StrokeWeight = lc.StrokeWeight
	}
	if lc.GapRadius != 0 {
		d.LoadingCircle.GapRadius = lc.GapRadius
	}

	return d
}
