package heartboard

import (
	"encoding/json"
	"errors"
	"time"
)

// LoadingCircle is the geometry of the spinner drawn while no heart rate is
// available.
type LoadingCircle struct {
	Radius       float64
	Period       time.Duration
	StrokeWeight float64
	GapRadius    float64
}

// Display holds rendering parameters. They do not affect acquisition, except
// FrameRate, which sets how often the poller is ticked.
type Display struct {
	Width             int
	Height            int
	FrameRate         int
	HeartRateFont     string
	HeartRateFontSize int
	HintFont          string
	HintFontSize      int
	LoadingCircle     LoadingCircle
}

// DefaultDisplay returns the stock 720x720 display at 60 frames per second.
func DefaultDisplay() Display {
	return Display{
		Width:             720,
		Height:            720,
		FrameRate:         60,
		HeartRateFont:     "DIN Light",
		HeartRateFontSize: 200,
		HintFont:          "DIN",
		HintFontSize:      35,
		LoadingCircle: LoadingCircle{
			Radius:       175,
			Period:       3 * time.Second,
			StrokeWeight: 10,
			GapRadius:    150,
		},
	}
}

// FrameInterval is the time between host loop frames.
func (d Display) FrameInterval() time.Duration {
	return time.Second / time.Duration(d.FrameRate)
}

func (d Display) validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return errors.New("display size must be positive")
	}
	if d.FrameRate <= 0 || d.FrameRate > 1000 {
		return errors.New("display frame rate must be between 1 and 1000")
	}
	if d.HeartRateFontSize <= 0 || d.HintFontSize <= 0 {
		return errors.New("display font sizes must be positive")
	}
	if d.LoadingCircle.Radius <= 0 || d.LoadingCircle.Period <= 0 {
		return errors.New("loading circle radius and period must be positive")
	}
	return nil
}

type loadingCircleJSON struct {
	Radius       float64 `json:"radius"`
	PeriodMs     int64   `json:"period_ms"`
	StrokeWeight float64 `json:"stroke_weight"`
	GapRadius    float64 `json:"gap_radius"`
}

type displayJSON struct {
	Width             int               `json:"width"`
	Height            int               `json:"height"`
	FrameRate         int               `json:"frame_rate"`
	HeartRateFont     string            `json:"heart_rate_font"`
	HeartRateFontSize int               `json:"heart_rate_font_size"`
	HintFont          string            `json:"hint_font"`
	HintFontSize      int               `json:"hint_font_size"`
	LoadingCircle     loadingCircleJSON `json:"loading_circle"`
}

// MarshalJSON emits the shape the dashboard reads from /api/display.
func (d Display) MarshalJSON() ([]byte, error) {
	return json.Marshal(displayJSON{
		Width:             d.Width,
		Height:            d.Height,
		FrameRate:         d.FrameRate,
		HeartRateFont:     d.HeartRateFont,
		HeartRateFontSize: d.HeartRateFontSize,
		HintFont:          d.HintFont,
		HintFontSize:      d.HintFontSize,
		LoadingCircle: loadingCircleJSON{
			Radius:       d.LoadingCircle.Radius,
			PeriodMs:     d.LoadingCircle.Period.Milliseconds(),
			StrokeWeight: d.LoadingCircle.StrokeWeight,
			GapRadius:    d.LoadingCircle.GapRadius,
		},
	})
}
