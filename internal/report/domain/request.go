package domain

import (
	"strings"
	"time"

	"github.com/smallbiznis/shelterbill/pkg/dates"
)

// Query is the raw report request as received from a client.
type Query struct {
	Start       string `form:"start"`
	End         string `form:"end"`
	Preset      string `form:"preset"`
	Today       string `form:"today"`
	Granularity string `form:"granularity"`
	SubjectID   string `form:"subject_id"`
	Format      string `form:"format"`
}

// ParseRequest validates q. Presets resolve against today, which callers take
// from the client's calendar when it is supplied.
func ParseRequest(q Query, today time.Time) (Request, error) {
	req := Request{
		Granularity: Granularity(strings.ToLower(strings.TrimSpace(q.Granularity))),
		SubjectID:   strings.TrimSpace(q.SubjectID),
		Format:      OutputFormat(strings.ToLower(strings.TrimSpace(q.Format))),
	}
	if req.Granularity == "" {
		req.Granularity = GranularityMonth
	}
	if !req.Granularity.Valid() {
		return Request{}, ErrInvalidGranularity
	}
	if req.Format == "" {
		req.Format = FormatJSON
	}
	if !req.Format.Valid() {
		return Request{}, ErrInvalidFormat
	}

	if strings.TrimSpace(q.Today) != "" {
		parsed, err := dates.Parse(q.Today)
		if err != nil {
			return Request{}, ErrInvalidDate
		}
		today = parsed
	}

	if preset := strings.TrimSpace(q.Preset); preset != "" {
		start, end, err := ResolvePreset(Preset(strings.ToLower(preset)), today)
		if err != nil {
			return Request{}, err
		}
		req.Start, req.End = start, end
		return req, nil
	}

	start, err := dates.Parse(q.Start)
	if err != nil {
		return Request{}, ErrInvalidDate
	}
	end, err := dates.Parse(q.End)
	if err != nil {
		return Request{}, ErrInvalidDate
	}
	req.Start, req.End = start, end
	return req, nil
}

// ResolvePreset maps a named period to inclusive calendar bounds around today.
func ResolvePreset(p Preset, today time.Time) (time.Time, time.Time, error) {
	today = dates.Of(today)
	switch p {
	case PresetToday:
		return today, today, nil
	case PresetThisWeek:
		start := dates.StartOfWeek(today)
		return start, start.AddDate(0, 0, 6), nil
	case PresetThisMonth:
		return dates.StartOfMonth(today), dates.EndOfMonth(today), nil
	case PresetLastMonth:
		prev := dates.StartOfMonth(today).AddDate(0, 0, -1)
		return dates.StartOfMonth(prev), dates.EndOfMonth(prev), nil
	case PresetThisYear:
		return dates.New(today.Year(), time.January, 1), dates.New(today.Year(), time.December, 31), nil
	default:
		return time.Time{}, time.Time{}, ErrInvalidPreset
	}
}
