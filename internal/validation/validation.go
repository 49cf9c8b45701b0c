// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/printhub/internal/apperr"
	"github.com/mmeshcher/printhub/internal/model"
)

const (
	// MinPhoneDigits задаёт минимальное число цифр в номере телефона.
	MinPhoneDigits = 10
	// MinPasswordLength задаёт минимальную длину пароля.
	MinPasswordLength = 6
	// MaxOrderPhotos задаёт максимальное число фотографий в заказе.
	MaxOrderPhotos = 10
	// MoneyPlaces задаёт число знаков после запятой в денежных суммах.
	MoneyPlaces = 2
)

var (
	ifscPattern    = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
)

// IsValidPhone проверяет, что номер содержит не меньше MinPhoneDigits цифр и только допустимые символы.
func IsValidPhone(phone string) bool {
	digits := 0
	for _, ch := range phone {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case ch == '+' || ch == ' ' || ch == '-' || ch == '(' || ch == ')':
		default:
			return false
		}
	}
	return digits >= MinPhoneDigits
}

// IsValidPincode проверяет шестизначный почтовый индекс.
func IsValidPincode(pincode string) bool {
	return pincodePattern.MatchString(pincode)
}

// IsValidIFSC проверяет формат банковского кода IFSC.
func IsValidIFSC(ifsc string) bool {
	return ifscPattern.MatchString(strings.ToUpper(ifsc))
}

// IsValidEmail проверяет адрес электронной почты.
func IsValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// HasMoneyPrecision проверяет, что сумма не содержит долей меньше копейки.
func HasMoneyPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MoneyPlaces))
}

// Amount проверяет денежную сумму поля: не больше двух знаков после запятой.
func Amount(field string, amount decimal.Decimal) error {
	if !HasMoneyPrecision(amount) {
		return apperr.Invalid(field, "must have at most 2 decimal places")
	}
	return nil
}

// IsValidAccountNumber проверяет номер счёта: от 9 до 18 цифр.
func IsValidAccountNumber(number string) bool {
	if len(number) < 9 || len(number) > 18 {
		return false
	}
	for _, ch := range number {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// NormalizeBankDetails убирает пробелы и приводит IFSC к верхнему регистру.
func NormalizeBankDetails(b model.BankDetails) model.BankDetails {
	return model.BankDetails{
		AccountName:   strings.TrimSpace(b.AccountName),
		AccountNumber: strings.ReplaceAll(strings.TrimSpace(b.AccountNumber), " ", ""),
		IFSC:          strings.ToUpper(strings.TrimSpace(b.IFSC)),
	}
}

// BankDetails проверяет реквизиты. Пустые реквизиты допустимы: фотограф может заполнить их позже.
func BankDetails(b model.BankDetails) error {
	if b.AccountName == "" && b.AccountNumber == "" && b.IFSC == "" {
		return nil
	}
	if b.AccountNumber == "" || !IsValidAccountNumber(b.AccountNumber) {
		return apperr.Invalid("accountNumber", "must contain 9 to 18 digits")
	}
	if !IsValidIFSC(b.IFSC) {
		return apperr.Invalid("ifsc", "must look like ABCD0123456")
	}
	return nil
}

// Buyer проверяет данные покупателя заказа.
func Buyer(b model.Buyer) error {
	if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Phone) == "" ||
		strings.TrimSpace(b.Address) == "" || strings.TrimSpace(b.Pincode) == "" {
		return apperr.Invalid("buyer", "please fill in all buyer details")
	}
	if !IsValidPhone(b.Phone) {
		return apperr.Invalid("buyerPhone", "phone number must be at least 10 digits")
	}
	if !IsValidPincode(b.Pincode) {
		return apperr.Invalid("buyerPincode", "pincode must be 6 digits")
	}
	return nil
}
