package choice

import (
	"math"
	"strconv"
	"strings"

	"vmcheck/config"
)

// Bounds on the number of choices a value specification may describe.
const (
	// MaxSetChoices bounds the values of a set, ranges included. Larger ranges are intervals.
	MaxSetChoices = 1 << 16
	// MaxIntervalChoices bounds the values of an interval.
	MaxIntervalChoices = math.MaxInt32
)

func splitSpec(spec string) []string {
	return strings.FieldsFunc(spec, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

func specError(id, spec, reason string) error {
	return &config.ConfigError{Key: "choice." + id, Value: spec, Reason: reason}
}

// ParseIntChoiceFromSet creates an IntChoiceFromSet from a list of values such as "-1, 0, 2".
//
// An element of the form "lo..hi" adds every value from lo to hi.
// An empty or unparsable list is a configuration error.
func ParseIntChoiceFromSet(id, spec string) (*IntChoiceFromSet, error) {
	tokens := splitSpec(spec)
	if len(tokens) == 0 {
		return nil, specError(id, spec, "no values")
	}
	values := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		if lo, hi, ok := strings.Cut(tok, ".."); ok {
			from, err1 := strconv.Atoi(lo)
			to, err2 := strconv.Atoi(hi)
			if err1 != nil || err2 != nil || to < from {
				return nil, specError(id, spec, "invalid range "+tok)
			}
			if uint(to)-uint(from) >= uint(MaxSetChoices-len(values)) {
				return nil, specError(id, spec, "range "+tok+" has too many values, use an interval")
			}
			for v := from; v <= to; v++ {
				values = append(values, v)
			}
			continue
		}
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, specError(id, spec, "invalid value "+tok)
		}
		values = append(values, v)
	}
	if len(values) > MaxSetChoices {
		return nil, specError(id, spec, "too many values")
	}
	return NewIntChoiceFromSet(id, values...), nil
}

// ParseDoubleChoiceFromSet creates a DoubleChoiceFromSet from a list of values such as "0.5, 1e3".
func ParseDoubleChoiceFromSet(id, spec string) (*DoubleChoiceFromSet, error) {
	tokens := splitSpec(spec)
	if len(tokens) == 0 {
		return nil, specError(id, spec, "no values")
	}
	values := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, specError(id, spec, "invalid value "+tok)
		}
		values = append(values, v)
	}
	return NewDoubleChoiceFromSet(id, values...), nil
}

// ParseIntInterval creates an IntIntervalGenerator from "min:max" or "min:max:delta".
func ParseIntInterval(id, spec string) (*IntIntervalGenerator, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, specError(id, spec, "expected min:max[:delta]")
	}
	nums := []int{0, 0, 1}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, specError(id, spec, "invalid number "+p)
		}
		nums[i] = v
	}
	if nums[2] == 0 {
		return nil, specError(id, spec, "delta must not be zero")
	}
	if nums[1] < nums[0] {
		return nil, specError(id, spec, "max is smaller than min")
	}
	g := NewIntIntervalGenerator(id, nums[0], nums[1], nums[2])
	if g.TotalNumberOfChoices() > MaxIntervalChoices {
		return nil, specError(id, spec, "interval has too many values")
	}
	return g, nil
}
