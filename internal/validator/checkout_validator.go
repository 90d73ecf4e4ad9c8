package validator

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"storefront/internal/domain/model"
)

// 入力が不正
var ErrInvalidInput = errors.New("invalid input")

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitsRe = regexp.MustCompile(`^\d+$`)
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// フィールド名→メッセージ
type FieldErrors map[string]string

// 1件でもあれば ErrInvalidInput を包んで返す
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}

	names := make([]string, 0, len(fe))
	for k := range fe {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(names, ", "))
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

// 配送先フォームを検証
func ValidateShipping(f model.ShippingForm) FieldErrors {
	errs := FieldErrors{}

	if len(f.Name) < 1 {
		errs.add("name", "Name is required")
	}

	// email形式
	if len(f.Email) < 1 {
		errs.add("email", "Email is required")
	} else if !emailRe.MatchString(f.Email) {
		errs.add("email", "Invalid email address")
	}

	if len(f.Phone) < 10 {
		errs.add("phone", "Phone number must be at least 10 digits")
	} else if !digitsRe.MatchString(f.Phone) {
		errs.add("phone", "Phone number must contain only numbers")
	}

	if len(f.Address) < 1 {
		errs.add("address", "Address is required")
	}
	if len(f.City) < 1 {
		errs.add("city", "City is required")
	}

	return errs
}

// 支払いフォームを検証
func ValidatePayment(f model.PaymentForm) FieldErrors {
	errs := FieldErrors{}

	if len(f.CardHolder) < 1 {
		errs.add("cardHolder", "card holder is required")
	}

	switch n := len(f.CardNumber); {
	case n < 16:
		errs.add("cardNumber", "card number is required")
	case n > 16:
		errs.add("cardNumber", "card number must be 16 digits")
	case !digitsRe.MatchString(f.CardNumber):
		errs.add("cardNumber", "card number must be 16 digits")
	}

	if !expiryRe.MatchString(f.ExpiryDate) {
		errs.add("expiryDate", "Invalid expiry date")
	}

	switch n := len(f.CVV); {
	case n < 3:
		errs.add("cvv", "cvv is required")
	case n > 3:
		errs.add("cvv", "cvv must be 3 digits")
	case !digitsRe.MatchString(f.CVV):
		errs.add("cvv", "cvv must be 3 digits")
	}

	return errs
}
