package metrics

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/inf.v0"
	"k8s.io/apimachinery/pkg/api/resource"
)

// ErrMalformedQuantity 资源量无法解析
var ErrMalformedQuantity = errors.New("malformed quantity")

const bytesPerMiB = 1024 * 1024

// ParseCPU 将CPU数量（"2"、"0.5"、"250m"）转换为毫核，不足1毫核的部分截断
func ParseCPU(q string) (int64, error) {
	quantity, err := parseQuantity(q)
	if err != nil {
		return 0, err
	}
	// 先乘以1000再截断；MilliValue 会向上取整
	return truncate(new(inf.Dec).Mul(quantity.AsDec(), inf.NewDec(1000, 0)), q)
}

// ParseMemory 将内存数量（"1Gi"、"512Mi"、"1024Ki"、"500M"、字节数）转换为MiB，向下取整
func ParseMemory(q string) (int64, error) {
	quantity, err := parseQuantity(q)
	if err != nil {
		return 0, err
	}
	return truncate(new(inf.Dec).QuoRound(quantity.AsDec(), inf.NewDec(bytesPerMiB, 0), 0, inf.RoundDown), q)
}

// truncate 向零取整为int64，溢出视为无法解析
func truncate(d *inf.Dec, raw string) (int64, error) {
	v, ok := new(inf.Dec).Round(d, 0, inf.RoundDown).Unscaled()
	if !ok {
		return 0, fmt.Errorf("%w: %q overflows int64", ErrMalformedQuantity, raw)
	}
	return v, nil
}

func parseQuantity(q string) (resource.Quantity, error) {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return resource.Quantity{}, fmt.Errorf("%w: empty value", ErrMalformedQuantity)
	}

	quantity, err := resource.ParseQuantity(trimmed)
	if err != nil {
		return resource.Quantity{}, fmt.Errorf("%w: %q: %v", ErrMalformedQuantity, q, err)
	}
	if quantity.Sign() < 0 {
		return resource.Quantity{}, fmt.Errorf("%w: %q is negative", ErrMalformedQuantity, q)
	}
	return quantity, nil
}
