package view

import (
	"fmt"
	"time"
)

var (
	longDays    = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}
	shortDays   = [...]string{"Min", "Sen", "Sel", "Rab", "Kam", "Jum", "Sab"}
	longMonths  = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni", "Juli", "Agustus", "September", "Oktober", "November", "Desember"}
	shortMonths = [...]string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}
)

// LongDateTime formats t the way id-ID renders a long weekday date with
// two-digit time: "Senin, 19 Oktober 2026 pukul 14.05".
func LongDateTime(t time.Time) string {
	return fmt.Sprintf("%s, %d %s %d pukul %02d.%02d",
		longDays[t.Weekday()], t.Day(), longMonths[t.Month()-1], t.Year(), t.Hour(), t.Minute())
}

// ShortDate formats t as "Sen, 19 Okt".
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%s, %d %s", shortDays[t.Weekday()], t.Day(), shortMonths[t.Month()-1])
}
