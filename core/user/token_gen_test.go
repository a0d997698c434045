package user

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studyhub/core"
)

func TestMakeVerifyToken(t *testing.T) {
	now := time.Now()
	usr := User{ID: "8c0f5d0e-2a8e-4d6c-9f59-1f4f1a6b2c11", Username: "t", LastLogin: now}
	require.NoError(t, usr.SetPassword("pwd"))

	validToken, err := MakeToken(usr)
	require.NoError(t, err)

	late := core.Conf.PasswordResetTimeoutDelta + time.Minute
	NowFunc = func() time.Time { return now.Add(-late) }
	expiredToken, err := MakeToken(usr)
	NowFunc = time.Now
	require.NoError(t, err)

	changedPwd := usr
	require.NoError(t, changedPwd.SetPassword("new-pwd"))
	loggedIn := usr
	loggedIn.LastLogin = now.Add(time.Second)

	tests := []struct {
		name    string
		usr     User
		token   string
		wantErr error
	}{
		{name: "no token", usr: usr, wantErr: errInvalidToken},
		{name: "no separator", usr: usr, token: "lmaooolol", wantErr: errInvalidToken},
		{name: "no expiry", usr: usr, token: "-sig", wantErr: errInvalidToken},
		{name: "bad expiry", usr: usr, token: "$$-sig", wantErr: errInvalidToken},
		{name: "forged signature", usr: usr, token: validToken[:len(validToken)-2] + "xx", wantErr: errInvalidToken},
		{name: "extended expiry", usr: usr, token: "zzzzzzz" + validToken[len(validToken)-44:], wantErr: errInvalidToken},
		{name: "expired", usr: usr, token: expiredToken, wantErr: errTokenExpired},
		{name: "password changed", usr: changedPwd, token: validToken, wantErr: errInvalidToken},
		{name: "logged in since", usr: loggedIn, token: validToken, wantErr: errInvalidToken},
		{name: "valid", usr: usr, token: validToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, verifyToken(tt.usr, tt.token))
		})
	}
}

func TestEncodeDecodeUID(t *testing.T) {
	usr := User{ID: "8c0f5d0e-2a8e-4d6c-9f59-1f4f1a6b2c11"}
	got, err := decodeUID(EncodeUID(usr))
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got)
}
