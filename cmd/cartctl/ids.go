package main

import (
	"strings"

	"storefront/internal/domain/model"
)

func modelID(s string) model.ProductID {
	return model.ProductID(strings.TrimSpace(s))
}
