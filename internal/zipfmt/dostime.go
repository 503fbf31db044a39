package zipfmt

import "time"

// dosEpoch is the earliest time MS-DOS date fields can represent.
var dosEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// TimeToDOS converts t to MS-DOS date and time fields.
// Times before 1980 clamp to the DOS epoch. The seconds field has a
// resolution of two seconds.
func TimeToDOS(t time.Time) (dosDate, dosTime uint16) {
	if t.Before(dosEpoch) {
		t = dosEpoch
	}
	year := t.Year()
	if year > 2107 {
		year = 2107
	}
	//nolint:gosec // all components are range-limited above
	dosDate = uint16(t.Day() + int(t.Month())<<5 + (year-1980)<<9)
	//nolint:gosec // all components are range-limited above
	dosTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return dosDate, dosTime
}

// DOSToTime converts MS-DOS date and time fields to a UTC time.
func DOSToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0,
		time.UTC,
	)
}
