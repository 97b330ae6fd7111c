package idp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"

	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/webauthn"
)

func newTestService(t *testing.T) (*LoginService, Account) {
	t.Helper()
	service := NewLoginService(NewInMemAccountRepository(), WithRelyingParty("id.example.com", "Example"))
	account, err := service.CreateAccount(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	return service, account
}

func TestService_IdentifyUnknownUser(t *testing.T) {
	service, _ := newTestService(t)

	account, options, err := service.Identify(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, account.ID)
	assert.Equal(t, []factor.Kind{factor.KindPassword}, options)
}

func TestService_IdentifyKnownUser(t *testing.T) {
	service, account := newTestService(t)

	found, options, err := service.Identify(context.Background(), "alice")

	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
	assert.Equal(t, []factor.Kind{factor.KindPassword}, options)
}

func TestService_IdentifyIsCaseInsensitive(t *testing.T) {
	service, account := newTestService(t)

	found, _, err := service.Identify(context.Background(), "ALICE")

	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)
}

func TestService_VerifyPassword(t *testing.T) {
	service, account := newTestService(t)

	found, err := service.VerifyPassword(context.Background(), "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = service.VerifyPassword(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = service.VerifyPassword(context.Background(), "nobody", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_SecondFactorsFollowEnrollment(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()

	assert.Empty(t, service.SecondFactors(account))

	_, err := service.SetupTotp(ctx, account.ID)
	require.NoError(t, err)
	_, err = service.GenerateRecoveryCodes(ctx, account.ID, 4)
	require.NoError(t, err)

	account, err = service.Account(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, []factor.Kind{factor.KindTotp, factor.KindRecoveryCode}, service.SecondFactors(account))
}

func TestService_VerifyTotp(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()

	secret, err := service.SetupTotp(ctx, account.ID)
	require.NoError(t, err)

	code := gotp.NewDefaultTOTP(secret).Now()
	assert.NoError(t, service.VerifyTotp(ctx, account.ID, code))
	assert.ErrorIs(t, service.VerifyTotp(ctx, account.ID, "000000"), ErrInvalidCode)
}

func TestService_RecoveryCodeWorksOnce(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()

	codes, err := service.GenerateRecoveryCodes(ctx, account.ID, 4)
	require.NoError(t, err)
	require.Len(t, codes, 4)

	require.NoError(t, service.VerifyRecoveryCode(ctx, account.ID, codes[1]))
	assert.ErrorIs(t, service.VerifyRecoveryCode(ctx, account.ID, codes[1]), ErrInvalidCode)

	// the other codes are still usable
	assert.NoError(t, service.VerifyRecoveryCode(ctx, account.ID, codes[0]))
}

func TestService_RecordSecondFactor(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()

	service.RecordSecondFactor(ctx, account.ID, factor.KindTotp)

	account, err := service.Account(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, factor.KindTotp, account.RecentFactor)
}

// completeRegistration enrolls a security-key credential through the
// registration ceremony and returns its id.
func completeRegistration(t *testing.T, service *LoginService, account Account) []byte {
	t.Helper()
	ctx := context.Background()

	opts, err := service.BeginRegistrationCeremony(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "id.example.com", opts.RPID)
	assert.Equal(t, "alice", opts.Username)

	credID := []byte{0xde, 0xad, 0xbe, 0xef}
	clientData, err := json.Marshal(clientData{
		Type:      "webauthn.create",
		Challenge: webauthn.EncodeBytes(opts.Challenge),
	})
	require.NoError(t, err)

	err = service.FinishRegistrationCeremony(ctx, account.ID, webauthn.Attestation{
		ID:                credID,
		RawID:             credID,
		Type:              "public-key",
		AttestationObject: []byte("attobj"),
		ClientDataJSON:    clientData,
	}, "YubiKey")
	require.NoError(t, err)
	return credID
}

func TestService_LoginCeremony(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()
	credID := completeRegistration(t, service, account)

	opts, err := service.BeginLoginCeremony(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, opts.AllowedCredentialIDs, 1)
	assert.Equal(t, credID, opts.AllowedCredentialIDs[0])

	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: webauthn.EncodeBytes(opts.Challenge),
	})
	require.NoError(t, err)

	err = service.FinishLoginCeremony(ctx, account.ID, webauthn.Assertion{
		ID:             credID,
		RawID:          credID,
		Type:           "public-key",
		ClientDataJSON: clientDataJSON,
	})
	assert.NoError(t, err)
}

func TestService_LoginCeremonyRejectsWrongChallenge(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()
	credID := completeRegistration(t, service, account)

	_, err := service.BeginLoginCeremony(ctx, account.ID)
	require.NoError(t, err)

	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: webauthn.EncodeBytes([]byte("forged challenge value")),
	})
	require.NoError(t, err)

	err = service.FinishLoginCeremony(ctx, account.ID, webauthn.Assertion{
		ID:             credID,
		RawID:          credID,
		ClientDataJSON: clientDataJSON,
	})
	assert.ErrorIs(t, err, ErrInvalidCeremony)
}

func TestService_LoginCeremonyRejectsUnknownCredential(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()
	completeRegistration(t, service, account)

	opts, err := service.BeginLoginCeremony(ctx, account.ID)
	require.NoError(t, err)

	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: webauthn.EncodeBytes(opts.Challenge),
	})
	require.NoError(t, err)

	err = service.FinishLoginCeremony(ctx, account.ID, webauthn.Assertion{
		ID:             []byte("someone-else"),
		RawID:          []byte("someone-else"),
		ClientDataJSON: clientDataJSON,
	})
	assert.ErrorIs(t, err, ErrInvalidCeremony)
}

func TestService_ChallengeIsSingleUse(t *testing.T) {
	service, account := newTestService(t)
	ctx := context.Background()
	credID := completeRegistration(t, service, account)

	opts, err := service.BeginLoginCeremony(ctx, account.ID)
	require.NoError(t, err)

	clientDataJSON, err := json.Marshal(clientData{
		Type:      "webauthn.get",
		Challenge: webauthn.EncodeBytes(opts.Challenge),
	})
	require.NoError(t, err)

	assertion := webauthn.Assertion{ID: credID, RawID: credID, ClientDataJSON: clientDataJSON}
	require.NoError(t, service.FinishLoginCeremony(ctx, account.ID, assertion))
	assert.ErrorIs(t, service.FinishLoginCeremony(ctx, account.ID, assertion), ErrInvalidCeremony)
}
