package escpos

import (
	"image"
	"strings"
	"time"
)

const (
	// DotsPerLine is the vertical size of one feed line, in dots.
	DotsPerLine = 24
	// DefaultMinDots is the minimum printed length of a text job, in dots.
	DefaultMinDots = 800
	// DefaultTimeFormat formats post timestamps.
	DefaultTimeFormat = "2006-01-02 15:04"
)

// Composer turns print requests into jobs.
type Composer struct {
	Font        Font
	MinDots     int
	DotsPerLine int
	Density     Density
	TimeFormat  string
	// Location, when set, converts timestamps before formatting.
	Location *time.Location
}

// NewComposer returns a composer with the printer defaults.
func NewComposer() Composer {
	return Composer{
		Font:        FontA,
		MinDots:     DefaultMinDots,
		DotsPerLine: DotsPerLine,
		Density:     DensityNormal,
		TimeFormat:  DefaultTimeFormat,
	}
}

// FeedLines returns the number of line feeds needed to cover minDots.
func FeedLines(minDots, dotsPerLine int) int {
	if minDots <= 0 || dotsPerLine <= 0 {
		return 0
	}
	return (minDots + dotsPerLine - 1) / dotsPerLine
}

func (c Composer) textHeader() []Directive {
	return []Directive{
		Initialize{},
		SetFont{Font: c.Font},
		SetAlign{Align: AlignLeft},
		SetBold{On: true},
		SetSize{Width: 1, Height: 1},
	}
}

func (c Composer) trailer(ds []Directive) []Directive {
	for i := FeedLines(c.MinDots, c.DotsPerLine); i > 0; i-- {
		ds = append(ds, Feed{})
	}
	return append(ds, Cut{})
}

// lines splits s into one Text directive per line.
func lines(s string) []Directive {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	parts := strings.Split(s, "\n")
	ds := make([]Directive, 0, len(parts))
	for _, line := range parts {
		ds = append(ds, Text{Line: line})
	}
	return ds
}

// Message prints "name: body" padded to the minimum length. A multi-line
// body continues on the following lines.
func (c Composer) Message(displayName, body string) *Job {
	ds := c.textHeader()
	ds = append(ds, lines(displayName+": "+body)...)
	return NewJob(c.trailer(ds)...)
}

// Post prints a feed item: the bold author line, then the timestamp and
// body in normal weight.
func (c Composer) Post(displayName, handle string, createdAt time.Time, body string) *Job {
	if c.Location != nil {
		createdAt = createdAt.In(c.Location)
	}
	format := c.TimeFormat
	if format == "" {
		format = DefaultTimeFormat
	}

	ds := c.textHeader()
	ds = append(ds,
		Text{Line: displayName + " (@" + handle + ")"},
		SetBold{On: false},
		Text{Line: createdAt.Format(format)},
	)
	ds = append(ds, lines(body)...)
	return NewJob(c.trailer(ds)...)
}

// Picture prints a binary raster and cuts.
func (c Composer) Picture(raster *image.Gray) *Job {
	return NewJob(
		Initialize{},
		Image{Raster: raster, Density: c.Density},
		Cut{},
	)
}
