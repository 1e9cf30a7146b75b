package record

// Unit indexes the SenML unit table (spec.md §6 / RFC 8428 table). The
// zero value is NOT "no unit" — use UnitNone for that — so a
// zero-valued Record without an explicit Unit assignment defaults to
// UnitMeter; callers that want no unit entry must set UnitNone
// explicitly, matching the original's requirement that NONE be an
// out-of-band sentinel rather than the enum's first member.
type Unit int

// UnitNone suppresses the unit entry (tag 1) entirely when encoding.
const UnitNone Unit = -1

const (
	UnitMeter Unit = iota
	UnitKg
	UnitGram
	UnitSecond
	UnitAmpere
	UnitKelvin
	UnitCandela
	UnitMole
	UnitHertz
	UnitRadian
	UnitSteradian
	UnitNewton
	UnitPascal
	UnitJoule
	UnitWatt
	UnitCoulomb
	UnitVolt
	UnitFarad
	UnitOhm
	UnitSiemens
	UnitWeber
	UnitTesla
	UnitHenry
	UnitCelsius
	UnitLumen
	UnitLux
	UnitBecquerel
	UnitGray
	UnitSievert
	UnitKatal
	UnitSqMeter
	UnitCubicMeter
	UnitLiter
	UnitMeterPerSecond
	UnitMeterPerSecond2
	UnitCubicMeterPerSecond
	UnitLiterPerSecond
	UnitWattPerSqMeter
	UnitCandelaPerSqMeter
	UnitBit
	UnitBitPerSecond
	UnitLatitude
	UnitLongitude
	UnitPH
	UnitDecibel
	UnitDecibelWatt
	UnitBspl
	UnitCount
	UnitRatio
	UnitPercent
	UnitPercentRH
	UnitPercentEL
	UnitEL
	UnitPerSecond
	UnitPerMinute
	UnitBeatsPerMinute
	UnitBeats
	UnitSiemensPerMeter

	unitEnumSize
)

// unitStrings is indexed by Unit; its order and contents must match
// the SenML wire-format unit table in spec.md §6 exactly.
var unitStrings = [unitEnumSize]string{
	"m", "kg", "g", "s", "A", "K", "cd", "mol", "Hz", "rad",
	"sr", "N", "Pa", "J", "W", "C", "V", "F", "Ohm", "S",
	"Wb", "T", "H", "Cel", "lm", "lx", "Bq", "Gy", "Sv", "kat",
	"m2", "m3", "l", "m/s", "m/s2", "m3/s", "l/s", "W/m2", "cd/m2", "bit",
	"bit/s", "lat", "lon", "pH", "dB", "dBW", "Bspl", "count", "/", "%",
	"%RH", "%EL", "EL", "1/s", "1/min", "beat/min", "beats", "S/m",
}

// Valid reports whether u is UnitNone or a table index in range.
func (u Unit) Valid() bool {
	return u == UnitNone || (u >= 0 && int(u) < len(unitStrings))
}

// String returns the SenML wire string for u. Callers must check
// Valid first; String panics on an out-of-range index to surface a
// programmer error immediately rather than emit a wrong wire value.
func (u Unit) String() string {
	if u == UnitNone {
		return ""
	}
	return unitStrings[u]
}
