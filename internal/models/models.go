package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BloodType is one of the eight ABO/Rh categories.
type BloodType string

const (
	APos  BloodType = "A+"
	ANeg  BloodType = "A-"
	BPos  BloodType = "B+"
	BNeg  BloodType = "B-"
	ABPos BloodType = "AB+"
	ABNeg BloodType = "AB-"
	OPos  BloodType = "O+"
	ONeg  BloodType = "O-"
)

// BloodTypes lists every accepted blood type in display order.
var BloodTypes = []BloodType{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

// ParseBloodType normalizes s and reports whether it names a known blood type.
// A trailing space stands in for "+" because unescaped query strings decode it that way.
func ParseBloodType(s string) (BloodType, bool) {
	s = strings.ToUpper(s)
	if trimmed := strings.TrimRight(s, " "); trimmed != s && !strings.HasSuffix(trimmed, "+") && !strings.HasSuffix(trimmed, "-") {
		s = trimmed + "+"
	}
	s = strings.TrimSpace(s)
	for _, bt := range BloodTypes {
		if string(bt) == s {
			return bt, true
		}
	}
	return "", false
}

// Defaults applied at registration when the caller leaves a field empty.
const (
	DefaultLastDonation  = "Never"
	DefaultContact       = "N/A"
	DefaultDistanceLabel = "Unknown"
)

type Donor struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	BloodType     BloodType `json:"bloodType"`
	City          string    `json:"city"`
	Contact       string    `json:"contact"`
	Age           *int      `json:"age"`
	Available     bool      `json:"available"`
	LastDonation  string    `json:"lastDonation"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	DistanceLabel string    `json:"distance"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasPosition reports whether both coordinate components are present.
func (d Donor) HasPosition() bool { return d.Lat != nil && d.Lng != nil }

// DonorFilter narrows a donor listing. Zero values mean "no filter".
type DonorFilter struct {
	BloodType BloodType
	Search    string
	Limit     int
}

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	Name         string      `json:"name"`
	BloodType    string      `json:"bloodType"`
	City         string      `json:"city"`
	Contact      string      `json:"contact"`
	Age          OptionalInt `json:"age"`
	Available    *bool       `json:"available"`
	LastDonation string      `json:"lastDonation"`
	Lat          *float64    `json:"lat"`
	Lng          *float64    `json:"lng"`
}

// RegistrationEvent is published on the registrations topic after a donor is stored.
type RegistrationEvent struct {
	Donor        Donor     `json:"donor"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// OptionalInt accepts a JSON number, a numeric string, an empty string or null.
// Form clients send number inputs as strings.
type OptionalInt struct {
	Value *int
}

func (o *OptionalInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		o.Value = nil
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			o.Value = nil
			return nil
		}
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("not a whole number: %q", raw)
	}
	o.Value = &v
	return nil
}

func (o OptionalInt) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(*o.Value)), nil
}
