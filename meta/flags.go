package meta

import "strconv"

// FormatFlagInt builds a flag whose token is the decimal form of an integer,
// e.g. FormatFlagInt(FlagTTL, 60) -> Flag{Type: FlagTTL, Token: "60"}.
func FormatFlagInt(flagType FlagType, value int) Flag {
	return Flag{Type: flagType, Token: strconv.Itoa(value)}
}

// FormatFlagInt64 is FormatFlagInt for int64 values (TTLs).
func FormatFlagInt64(flagType FlagType, value int64) Flag {
	return Flag{Type: flagType, Token: strconv.FormatInt(value, 10)}
}

// FormatFlagUint64 is FormatFlagInt for uint64 values (CAS tokens).
func FormatFlagUint64(flagType FlagType, value uint64) Flag {
	return Flag{Type: flagType, Token: strconv.FormatUint(value, 10)}
}
