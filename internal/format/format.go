// Package format renders dates the way each site locale expects.
package format

import (
	"strconv"
	"strings"
	"time"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

// Style selects the date length.
type Style int

const (
	// Medium is used on cards: "Mar 5, 2025".
	Medium Style = iota
	// Long is used on article pages: "March 5, 2025".
	Long
)

var months = map[locale.Locale][12]string{
	locale.EN: {"January", "February", "March", "April", "May", "June", "July", "August", "September", "October", "November", "December"},
	locale.FR: {"janvier", "février", "mars", "avril", "mai", "juin", "juillet", "août", "septembre", "octobre", "novembre", "décembre"},
	locale.AR: {"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو", "يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر"},
}

var frShort = [12]string{"janv.", "févr.", "mars", "avr.", "mai", "juin", "juil.", "août", "sept.", "oct.", "nov.", "déc."}

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// Date formats t for l. A zero time yields "".
func Date(t time.Time, l locale.Locale, style Style) string {
	if t.IsZero() {
		return ""
	}
	day := strconv.Itoa(t.Day())
	year := strconv.Itoa(t.Year())
	m := int(t.Month()) - 1

	switch l {
	case locale.FR:
		month := months[locale.FR][m]
		if style == Medium {
			month = frShort[m]
		}
		if t.Day() == 1 {
			day = "1er"
		}
		return day + " " + month + " " + year
	case locale.AR:
		return arabicDigits.Replace(day) + " " + months[locale.AR][m] + " " + arabicDigits.Replace(year)
	default:
		month := months[locale.EN][m]
		if style == Medium {
			month = month[:3]
		}
		return month + " " + day + ", " + year
	}
}

// ISODate is the machine-readable form used in <time datetime>.
func ISODate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
