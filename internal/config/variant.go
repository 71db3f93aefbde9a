package config

import (
	"fmt"
	"strings"
)

const (
	VariantDefault = "default"
	VariantJaBert  = "ja-bert"
)

func NormalizeVariant(raw string) (string, error) {
	variant := strings.ToLower(strings.TrimSpace(raw))
	if variant == "" {
		variant = VariantDefault
	}
	switch variant {
	case VariantDefault, VariantJaBert:
		return variant, nil
	case "base", "bert":
		return VariantDefault, nil
	case "ja_bert", "jabert":
		return VariantJaBert, nil
	default:
		return "", fmt.Errorf(
			"invalid variant %q (expected %s|%s)",
			raw,
			VariantDefault,
			VariantJaBert,
		)
	}
}
