package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"stockflow-service/internal/authz"
)

func TestUser_ToPrincipal(t *testing.T) {
	tests := []struct {
		name  string
		input *User
		want  authz.Principal
	}{
		{
			name:  "full name",
			input: &User{Id: "u1", Email: "jane@stockflow.test", FirstName: "Jane", LastName: "Doe", Role: "Manager"},
			want:  authz.Principal{UserID: "u1", Name: "Jane Doe", Email: "jane@stockflow.test", Role: "Manager"},
		},
		{
			name:  "first name only",
			input: &User{Id: "u2", FirstName: "Ada", Role: "User"},
			want:  authz.Principal{UserID: "u2", Name: "Ada", Role: "User"},
		},
		{
			name:  "last name only",
			input: &User{Id: "u3", LastName: "Hopper", Role: "Admin"},
			want:  authz.Principal{UserID: "u3", Name: "Hopper", Role: "Admin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.input.ToPrincipal())
		})
	}
}
