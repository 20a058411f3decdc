package notify

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.BrazilianPortuguese,
	language.English,
}

var monthNames = map[language.Tag][12]string{
	language.BrazilianPortuguese: {
		"janeiro", "fevereiro", "março", "abril", "maio", "junho",
		"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
	},
	language.English: {
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
}

// Formatter renders human-readable notification and mail text for one locale
// and time zone.
type Formatter struct {
	tag language.Tag
	loc *time.Location
}

// NewFormatter matches locale against the supported languages, falling back
// to Brazilian Portuguese. A nil loc means UTC.
func NewFormatter(locale string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	tag := supported[0]
	if locale != "" {
		if t, err := language.Parse(locale); err == nil {
			_, idx, conf := language.NewMatcher(supported).Match(t)
			if conf != language.No {
				tag = supported[idx]
			}
		}
	}
	return &Formatter{tag: tag, loc: loc}
}

func (f *Formatter) Locale() language.Tag {
	return f.tag
}

// Location is the zone dates are rendered in.
func (f *Formatter) Location() *time.Location {
	return f.loc
}

// Slot renders the date and time of a booked hour.
func (f *Formatter) Slot(t time.Time) string {
	lt := t.In(f.loc)
	month := monthNames[f.tag][lt.Month()-1]
	switch f.tag {
	case language.English:
		return fmt.Sprintf("%s %02d at %d:%02d", month, lt.Day(), lt.Hour(), lt.Minute())
	default:
		return fmt.Sprintf("dia %02d de %s, às %d:%02dh", lt.Day(), month, lt.Hour(), lt.Minute())
	}
}

func (f *Formatter) BookingNotice(clientName string, slot time.Time) string {
	switch f.tag {
	case language.English:
		return fmt.Sprintf("new appointment from %s on %s", clientName, f.Slot(slot))
	default:
		return fmt.Sprintf("novo agendamento de %s para %s", clientName, f.Slot(slot))
	}
}

func (f *Formatter) CancellationSubject() string {
	switch f.tag {
	case language.English:
		return "Appointment cancelled"
	default:
		return "Agendamento cancelado"
	}
}

func (f *Formatter) CancellationBody(providerName, clientName string, slot time.Time) string {
	switch f.tag {
	case language.English:
		return fmt.Sprintf("Hello %s, the appointment with %s on %s was cancelled.", providerName, clientName, f.Slot(slot))
	default:
		return fmt.Sprintf("Olá %s, o agendamento de %s para %s foi cancelado.", providerName, clientName, f.Slot(slot))
	}
}
