package shared

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Settings holds the runtime-mutable knobs of the rotation engine.
//
// Fields are changed only through [Settings.Set], which validates the value and rejects unknown names.
// A Settings value is owned by the scheduler goroutine like the rest of the queue state.
type Settings struct {
	LikeThreshold    int
	DislikeThreshold int
	SayNames         bool
	DuckFactor       float64
}

type setter func(s *Settings, value string) error

// settingFields is the dispatch table of named setters.
var settingFields = map[string]setter{
	"like_threshold": func(s *Settings, value string) error {
		n, err := parseThreshold(value)
		if err != nil {
			return err
		}
		s.LikeThreshold = n
		return nil
	},
	"dislike_threshold": func(s *Settings, value string) error {
		n, err := parseThreshold(value)
		if err != nil {
			return err
		}
		s.DislikeThreshold = n
		return nil
	},
	"say_names": func(s *Settings, value string) error {
		b, err := parseSwitch(value)
		if err != nil {
			return err
		}
		s.SayNames = b
		return nil
	},
	"duck_factor": func(s *Settings, value string) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("%w: duck_factor must be a number in [0, 1]", ErrInvalidArgument)
		}
		s.DuckFactor = f
		return nil
	},
}

// NewSettings builds validated [Settings] from the queue config.
func NewSettings(q QueueConfig, duckFactor float64) (*Settings, error) {
	if q.LikeThreshold < 1 || q.DislikeThreshold < 1 {
		return nil, fmt.Errorf("%w: vote thresholds must be at least 1", ErrInvalidConfig)
	}
	if duckFactor < 0 || duckFactor > 1 {
		return nil, fmt.Errorf("%w: duck_factor must be in [0, 1]", ErrInvalidConfig)
	}
	return &Settings{
		LikeThreshold:    q.LikeThreshold,
		DislikeThreshold: q.DislikeThreshold,
		SayNames:         q.SayNames,
		DuckFactor:       duckFactor,
	}, nil
}

// Set assigns value to the named field. Unknown fields return [ErrUnknownSetting].
//
// Boolean fields accept "+" and "-" in addition to the usual true/false spellings.
func (s *Settings) Set(field, value string) error {
	fn, ok := settingFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownSetting, field, strings.Join(SettingNames(), ", "))
	}
	return fn(s, strings.TrimSpace(value))
}

// Get returns the current value of the named field formatted as a string.
func (s *Settings) Get(field string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "like_threshold":
		return strconv.Itoa(s.LikeThreshold), nil
	case "dislike_threshold":
		return strconv.Itoa(s.DislikeThreshold), nil
	case "say_names":
		return strconv.FormatBool(s.SayNames), nil
	case "duck_factor":
		return strconv.FormatFloat(s.DuckFactor, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSetting, field)
	}
}

// SettingNames lists the fields accepted by [Settings.Set] in sorted order.
func SettingNames() []string {
	names := make([]string, 0, len(settingFields))
	for name := range settingFields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func parseThreshold(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: threshold must be a positive integer, got %q", ErrInvalidArgument, value)
	}
	return n, nil
}

func parseSwitch(value string) (bool, error) {
	switch value {
	case "+":
		return true, nil
	case "-":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: expected +, -, true or false, got %q", ErrInvalidArgument, value)
	}
	return b, nil
}
