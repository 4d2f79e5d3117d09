package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrInvalidBinCode is returned when a bin code value cannot be parsed
var ErrInvalidBinCode = errors.New("invalid bin code")

// BinCode is an immutable value object naming a physical bin slot.
// Format: ZONE-AISLE-RACK-LEVEL-BIN (e.g., "A-01-R05-L02-B07").
type BinCode struct {
	code  string
	zone  string
	aisle string
	rack  int
	level int
	bin   int
}

var binCodePattern = regexp.MustCompile(`^([A-Z]{1,2})-(\d{2})-R(\d{2})-L(\d{2})-B(\d{2})$`)

// ParseBinCode parses and validates a bin code string
func ParseBinCode(code string) (BinCode, error) {
	if code == "" {
		return BinCode{}, ErrInvalidBinCode
	}

	matches := binCodePattern.FindStringSubmatch(code)
	if matches == nil {
		return BinCode{}, fmt.Errorf("%w: expected ZONE-AISLE-RACK-LEVEL-BIN", ErrInvalidBinCode)
	}

	rack, _ := strconv.Atoi(matches[3])
	level, _ := strconv.Atoi(matches[4])
	bin, _ := strconv.Atoi(matches[5])

	if rack < 1 || rack > 99 {
		return BinCode{}, fmt.Errorf("%w: rack must be between 01 and 99", ErrInvalidBinCode)
	}
	if level < 1 || level > 99 {
		return BinCode{}, fmt.Errorf("%w: level must be between 01 and 99", ErrInvalidBinCode)
	}
	if bin < 1 || bin > 99 {
		return BinCode{}, fmt.Errorf("%w: bin must be between 01 and 99", ErrInvalidBinCode)
	}

	return BinCode{
		code:  code,
		zone:  matches[1],
		aisle: matches[2],
		rack:  rack,
		level: level,
		bin:   bin,
	}, nil
}

// NewBinCode builds a BinCode from individual components
func NewBinCode(zone, aisle string, rack, level, bin int) (BinCode, error) {
	code := fmt.Sprintf("%s-%s-R%02d-L%02d-B%02d", zone, aisle, rack, level, bin)
	return ParseBinCode(code)
}

// Code returns the full bin code string
func (b BinCode) Code() string { return b.code }

// Zone returns the zone component
func (b BinCode) Zone() string { return b.zone }

// Aisle returns the aisle component
func (b BinCode) Aisle() string { return b.aisle }

// Rack returns the rack number
func (b BinCode) Rack() int { return b.rack }

// Level returns the level number
func (b BinCode) Level() int { return b.level }

// Bin returns the bin slot number
func (b BinCode) Bin() int { return b.bin }

// IsZero reports whether the code is unset
func (b BinCode) IsZero() bool { return b.code == "" }

// String returns the string representation of the bin code
func (b BinCode) String() string { return b.code }

// Equals checks if two bin codes name the same slot
func (b BinCode) Equals(other BinCode) bool {
	return b.code == other.code
}

// IsSameZone checks if this bin is in the same zone as another
func (b BinCode) IsSameZone(other BinCode) bool {
	return b.zone == other.zone
}

// IsSameAisle checks if this bin is in the same aisle as another
func (b BinCode) IsSameAisle(other BinCode) bool {
	return b.zone == other.zone && b.aisle == other.aisle
}

// IsGroundLevel returns true if the bin sits on level 01
func (b BinCode) IsGroundLevel() bool {
	return b.level == 1
}

// MarshalText implements encoding.TextMarshaler for JSON/BSON serialization
func (b BinCode) MarshalText() ([]byte, error) {
	return []byte(b.code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON deserialization
func (b *BinCode) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*b = BinCode{}
		return nil
	}
	code, err := ParseBinCode(string(text))
	if err != nil {
		return err
	}
	*b = code
	return nil
}

// MarshalBSONValue stores the bin code as its canonical string. The struct
// fields are unexported, so without this the driver would persist an empty
// document.
func (b BinCode) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(b.code)
}

// UnmarshalBSONValue restores a bin code from its canonical string
func (b *BinCode) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var code string
	if err := bson.UnmarshalValue(t, data, &code); err != nil {
		return err
	}
	if code == "" {
		*b = BinCode{}
		return nil
	}
	parsed, err := ParseBinCode(code)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
