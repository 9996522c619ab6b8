package booking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendafacil/internal/model"
)

func TestBookingRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BookingRequest)
		field   string
		wantErr bool
	}{
		{"valid", func(r *BookingRequest) {}, "", false},
		{"accented name", func(r *BookingRequest) { r.ClientName = "João D'Ávila-Souza" }, "", false},
		{"two letter name", func(r *BookingRequest) { r.ClientName = "Jo" }, "", false},
		{"plain digits phone", func(r *BookingRequest) { r.ClientPhone = "11987654321" }, "", false},
		{"landline digits", func(r *BookingRequest) { r.ClientPhone = "1132654321" }, "", false},
		{"landline formatted", func(r *BookingRequest) { r.ClientPhone = "(11) 3265-4321" }, "", false},
		{"single digit hour", func(r *BookingRequest) { r.Time = "9:00" }, "", false},
		{"valid email", func(r *BookingRequest) { r.ClientEmail = "maria@example.com" }, "", false},

		{"missing business", func(r *BookingRequest) { r.BusinessID = "" }, "business_id", true},
		{"missing service", func(r *BookingRequest) { r.ServiceID = "" }, "service_id", true},
		{"one letter name", func(r *BookingRequest) { r.ClientName = "J" }, "client_name", true},
		{"long name", func(r *BookingRequest) { r.ClientName = strings.Repeat("a", 101) }, "client_name", true},
		{"name with digits", func(r *BookingRequest) { r.ClientName = "Maria 2" }, "client_name", true},
		{"name with symbols", func(r *BookingRequest) { r.ClientName = "Maria <script>" }, "client_name", true},
		{"short phone", func(r *BookingRequest) { r.ClientPhone = "12345" }, "client_phone", true},
		{"phone without space", func(r *BookingRequest) { r.ClientPhone = "(11)98765-4321" }, "client_phone", true},
		{"missing phone", func(r *BookingRequest) { r.ClientPhone = "" }, "client_phone", true},
		{"bad email", func(r *BookingRequest) { r.ClientEmail = "maria@" }, "client_email", true},
		{"bad date", func(r *BookingRequest) { r.Date = "2025-13-01" }, "date", true},
		{"bad time", func(r *BookingRequest) { r.Time = "9h" }, "time", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest("10:00")
			tt.mutate(&req)
			req.Normalize()
			err := req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.NotEmpty(t, ve.Reason)
		})
	}
}

func TestBookingRequest_Normalize(t *testing.T) {
	req := BookingRequest{
		BusinessID:  " biz ",
		ClientName:  "  Ana \t  Maria  ",
		ClientPhone: " +55 (11) 98765-4321 ",
		ClientEmail: " Ana@Mail.COM ",
		Time:        " 09:30 ",
	}
	req.Normalize()

	assert.Equal(t, "biz", req.BusinessID)
	assert.Equal(t, "Ana Maria", req.ClientName)
	assert.Equal(t, "55 (11) 98765-4321", req.ClientPhone)
	assert.Equal(t, "ana@mail.com", req.ClientEmail)
	assert.Equal(t, "09:30", req.Time)
}

func TestSanitizePhone(t *testing.T) {
	tests := map[string]string{
		"(11) 98765-4321": "(11) 98765-4321",
		"11.98765.4321":   "11987654321",
		"tel: 1198765432": "1198765432",
		"١٢٣ 11987654321": "11987654321",
		"fone 119876543 ": "119876543",
		"":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizePhone(in), in)
	}
}
