package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/erazemk/marketbook/internal/model"
)

func TestDecide(t *testing.T) {
	alice := &model.User{ID: 1, Role: model.RoleUser}
	bob := &model.User{ID: 2, Role: model.RoleUser}
	admin := &model.User{ID: 3, Role: model.RoleAdmin}

	tests := []struct {
		name      string
		requester *model.User
		res       Resource
		want      Decision
	}{
		{"owner", alice, Owned(1), Allow},
		{"other user", bob, Owned(1), Deny},
		{"admin on other item", admin, Owned(1), Allow},
		{"admin on own item", admin, Owned(3), Allow},
		{"self only owner", alice, Self(1), Allow},
		{"self only other user", bob, Self(1), Deny},
		{"self only admin", admin, Self(1), Deny},
		{"nil requester", nil, Owned(1), Deny},
		{"zero owner", alice, Owned(0), Deny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.requester, tt.res))
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "deny", Deny.String())
}
