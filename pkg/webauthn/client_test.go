package webauthn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aginhq/agin-login/pkg/loginapi"
	"github.com/aginhq/agin-login/pkg/loginflow"
)

type fakeAuthenticator struct {
	lastAssertionOpts AssertionOptions
	assertion         Assertion
	assertionErr      error

	lastCreationOpts CreationOptions
	attestation      Attestation
	attestationErr   error
}

func (f *fakeAuthenticator) GetAssertion(ctx context.Context, opts AssertionOptions) (Assertion, error) {
	f.lastAssertionOpts = opts
	return f.assertion, f.assertionErr
}

func (f *fakeAuthenticator) CreateCredential(ctx context.Context, opts CreationOptions) (Attestation, error) {
	f.lastCreationOpts = opts
	return f.attestation, f.attestationErr
}

func TestClient_LoginCeremony(t *testing.T) {
	challenge := []byte("sixteen-byte-chg")
	credID := []byte{1, 2, 3, 4}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login/webauthn/start":
			render.JSON(w, r, loginapi.CredentialRequestOptions{
				Challenge:        EncodeBytes(challenge),
				RPID:             "id.example.com",
				AllowCredentials: []string{EncodeBytes(credID)},
			})
		case "/api/login/webauthn/finish":
			var payload loginapi.AssertionPayload
			require.NoError(t, render.DecodeJSON(r.Body, &payload))
			assert.Equal(t, EncodeBytes(credID), payload.ID)
			assert.Equal(t, "public-key", payload.Type)
			render.JSON(w, r, loginapi.LoginResponse{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	authn := &fakeAuthenticator{
		assertion: Assertion{
			ID:                credID,
			RawID:             credID,
			Type:              "public-key",
			AuthenticatorData: []byte("authdata"),
			ClientDataJSON:    []byte(`{"challenge":"x"}`),
			Signature:         []byte("sig"),
		},
	}
	client := NewClient(loginapi.NewClient(srv.URL), authn)

	res, err := client.Login(context.Background())

	require.NoError(t, err)
	assert.False(t, res.TwoFactorRequired)
	assert.Equal(t, challenge, authn.lastAssertionOpts.Challenge)
	assert.Equal(t, "id.example.com", authn.lastAssertionOpts.RPID)
	require.Len(t, authn.lastAssertionOpts.AllowedCredentialIDs, 1)
	assert.Equal(t, credID, authn.lastAssertionOpts.AllowedCredentialIDs[0])
}

func TestClient_LoginCancelledPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, loginapi.CredentialRequestOptions{Challenge: EncodeBytes([]byte("chg"))})
	}))
	defer srv.Close()

	authn := &fakeAuthenticator{assertionErr: ErrCeremonyCancelled}
	client := NewClient(loginapi.NewClient(srv.URL), authn)

	_, err := client.Login(context.Background())

	var flowErr *loginflow.Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, loginflow.ErrorTypeCeremony, flowErr.Type)
	assert.Equal(t, "The security key prompt was dismissed", flowErr.Message)
}

func TestClient_LoginBadChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, loginapi.CredentialRequestOptions{Challenge: "!!! not base64 !!!"})
	}))
	defer srv.Close()

	client := NewClient(loginapi.NewClient(srv.URL), &fakeAuthenticator{})

	_, err := client.Login(context.Background())

	var flowErr *loginflow.Error
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, loginflow.ErrorTypeCeremony, flowErr.Type)
}

func TestClient_RegisterCeremony(t *testing.T) {
	challenge := []byte("registration-chg")
	userID := []byte("user-handle")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/settings/factors/webauthn/start":
			render.JSON(w, r, loginapi.CredentialCreationOptions{
				Challenge: EncodeBytes(challenge),
				RPID:      "id.example.com",
				RPName:    "Example",
				UserID:    EncodeBytes(userID),
				Username:  "alice",
			})
		case "/api/settings/factors/webauthn/finish":
			var payload loginapi.AttestationPayload
			require.NoError(t, render.DecodeJSON(r.Body, &payload))
			assert.Equal(t, "YubiKey", payload.DisplayName)
			render.JSON(w, r, map[string]bool{"registered": true})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	authn := &fakeAuthenticator{
		attestation: Attestation{
			ID:                []byte{9, 9},
			RawID:             []byte{9, 9},
			Type:              "public-key",
			AttestationObject: []byte("attobj"),
			ClientDataJSON:    []byte(`{}`),
		},
	}
	client := NewClient(loginapi.NewClient(srv.URL), authn)

	err := client.Register(context.Background(), "YubiKey")

	require.NoError(t, err)
	assert.Equal(t, challenge, authn.lastCreationOpts.Challenge)
	assert.Equal(t, userID, authn.lastCreationOpts.UserID)
	assert.Equal(t, "alice", authn.lastCreationOpts.Username)
}
