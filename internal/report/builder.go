// Package report turns a query series into a chart-ready dataset and renders it.
package report

import (
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"guild-metrics/internal/domain"
)

type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
)

const (
	ChartWidth  = 800
	ChartHeight = 400
)

// Style mirrors the options handed to the image renderer.
type Style struct {
	BorderColor     string `json:"border_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	Fill            bool   `json:"fill"`
	BeginAtZero     bool   `json:"begin_at_zero"`
	ShowXAxis       bool   `json:"show_x_axis"`
}

var (
	memberStyle = Style{
		BorderColor: "rgba(75, 192, 192, 1)",
		BeginAtZero: true,
		ShowXAxis:   true,
	}
	messageStyle = Style{
		BackgroundColor: "rgba(153, 102, 255, 0.6)",
		BeginAtZero:     true,
		ShowXAxis:       true,
	}
)

type Dataset struct {
	Kind     domain.MetricKind `json:"kind"`
	Chart    ChartKind         `json:"chart"`
	Title    string            `json:"title"`
	Locale   string            `json:"locale"`
	Labels   []string          `json:"labels"`
	Values   []int64           `json:"values"`
	Style    Style             `json:"style"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	FileName string            `json:"file_name"`
}

func (d Dataset) Validate() error {
	if len(d.Labels) != len(d.Values) {
		return &domain.RenderError{Reason: "labels and values differ in length"}
	}
	if d.Width <= 0 || d.Height <= 0 {
		return &domain.RenderError{Reason: "chart size must be positive"}
	}
	return nil
}

const (
	titleMembers  = "Member count"
	titleMessages = "Message count"

	loadMembersFailed  = "Failed to load member statistics."
	loadMessagesFailed = "Failed to load message statistics."
	drawMembersFailed  = "Failed to draw the member chart."
	drawMessagesFailed = "Failed to draw the message chart."
)

// Supported locales; the first one is the last-resort fallback.
var supported = []language.Tag{language.English, language.Russian, language.German}

var dateLayouts = map[language.Tag]string{
	language.English: "1/2/2006",
	language.Russian: "02.01.2006",
	language.German:  "2.1.2006",
}

var texts = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for tag, msgs := range map[language.Tag]map[string]string{
		language.Russian: {
			titleMembers:       "Количество участников",
			titleMessages:      "Количество сообщений",
			loadMembersFailed:  "Произошла ошибка при получении данных участников.",
			loadMessagesFailed: "Произошла ошибка при получении данных сообщений.",
			drawMembersFailed:  "Произошла ошибка при создании графика участников.",
			drawMessagesFailed: "Произошла ошибка при создании графика сообщений.",
		},
		language.German: {
			titleMembers:       "Mitgliederzahl",
			titleMessages:      "Anzahl der Nachrichten",
			loadMembersFailed:  "Mitgliederstatistik konnte nicht geladen werden.",
			loadMessagesFailed: "Nachrichtenstatistik konnte nicht geladen werden.",
			drawMembersFailed:  "Mitgliederdiagramm konnte nicht erstellt werden.",
			drawMessagesFailed: "Nachrichtendiagramm konnte nicht erstellt werden.",
		},
	} {
		for key, msg := range msgs {
			_ = b.SetString(tag, key, msg)
		}
	}
	for _, key := range []string{titleMembers, titleMessages, loadMembersFailed, loadMessagesFailed, drawMembersFailed, drawMessagesFailed} {
		_ = b.SetString(language.English, key, key)
	}
	return b
}()

type Builder struct {
	matcher       language.Matcher
	defaultLocale string
}

// NewBuilder uses defaultLocale whenever a request names no locale we support.
func NewBuilder(defaultLocale string) *Builder {
	return &Builder{matcher: language.NewMatcher(supported), defaultLocale: defaultLocale}
}

// Build maps a series onto parallel labels and values. Labels are calendar dates in
// the locale's short form; member samples are labelled with their UTC day.
func (b *Builder) Build(series domain.Series, kind domain.MetricKind, locale string) (Dataset, error) {
	tag := b.match(locale)
	layout := dateLayouts[tag]
	printer := message.NewPrinter(tag, message.Catalog(texts))

	ds := Dataset{
		Kind:   kind,
		Locale: tag.String(),
		Labels: make([]string, 0, series.Len()),
		Values: make([]int64, 0, series.Len()),
		Width:  ChartWidth,
		Height: ChartHeight,
	}

	switch kind {
	case domain.MetricMembers:
		ds.Chart, ds.Style, ds.FileName = ChartLine, memberStyle, "members.png"
		ds.Title = printer.Sprintf(titleMembers)
	case domain.MetricMessages:
		ds.Chart, ds.Style, ds.FileName = ChartBar, messageStyle, "messages.png"
		ds.Title = printer.Sprintf(titleMessages)
	default:
		return Dataset{}, &domain.RenderError{Reason: "unsupported metric kind " + strconv.Quote(string(kind))}
	}

	for _, p := range series.Points {
		ds.Labels = append(ds.Labels, label(p, kind, layout))
		ds.Values = append(ds.Values, p.Value)
	}

	if err := ds.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

func (b *Builder) match(locale string) language.Tag {
	_, idx := language.MatchStrings(b.matcher, locale, b.defaultLocale)
	return supported[idx]
}

// FailureMessage is the text shown to a user whose chart request failed. Render
// failures and storage failures read differently.
func (b *Builder) FailureMessage(kind domain.MetricKind, err error, locale string) string {
	key := loadMessagesFailed
	switch {
	case kind == domain.MetricMembers && domain.IsRenderError(err):
		key = drawMembersFailed
	case kind == domain.MetricMembers:
		key = loadMembersFailed
	case domain.IsRenderError(err):
		key = drawMessagesFailed
	}
	return message.NewPrinter(b.match(locale), message.Catalog(texts)).Sprintf(key)
}

func label(p domain.Point, kind domain.MetricKind, layout string) string {
	if kind == domain.MetricMessages {
		t, err := time.Parse(domain.DateLayout, p.Key)
		if err != nil {
			return p.Key
		}
		return t.Format(layout)
	}
	return time.Unix(p.Unix, 0).UTC().Format(layout)
}
