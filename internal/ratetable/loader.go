package ratetable

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type tableFile struct {
	MinYear int          `mapstructure:"min_year"`
	Years   []*YearTable `mapstructure:"years"`
}

// LoadFile reads year tables from a YAML (or any viper-supported) file and
// validates them. minYear overrides the file's min_year when positive.
func LoadFile(path string, minYear int) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("ratetable.LoadFile: reading %s: %w", path, err)
	}

	var doc tableFile
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		decimalDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&doc, hook); err != nil {
		return nil, fmt.Errorf("ratetable.LoadFile: decoding %s: %w", path, err)
	}

	if minYear <= 0 {
		minYear = doc.MinYear
	}
	if minYear <= 0 {
		minYear = DefaultMinYear
	}
	t, err := New(minYear, doc.Years...)
	if err != nil {
		return nil, fmt.Errorf("ratetable.LoadFile: %s: %w", path, err)
	}
	return t, nil
}

var decimalType = reflect.TypeOf(decimal.Decimal{})

// decimalDecodeHook turns YAML numbers and strings into decimal.Decimal.
// Strings are preferred in files since they never pass through float64.
func decimalDecodeHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			s := strings.ReplaceAll(strings.TrimSpace(v), "_", "")
			if s == "" {
				return decimal.Zero, nil
			}
			return decimal.NewFromString(s)
		case int:
			return decimal.NewFromInt(int64(v)), nil
		case int64:
			return decimal.NewFromInt(v), nil
		case float64:
			return decimal.NewFromFloat(v), nil
		case nil:
			return decimal.Zero, nil
		}
		return data, nil
	}
}
