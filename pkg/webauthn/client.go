package webauthn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aginhq/agin-login/pkg/loginapi"
	"github.com/aginhq/agin-login/pkg/loginflow"
)

// Client runs full security-key ceremonies against the login API: fetch the
// challenge bundle, hand it to the platform authenticator, submit the
// result. It implements loginflow.CeremonyClient.
type Client struct {
	api   *loginapi.Client
	authn Authenticator
}

// NewClient pairs the API client with a platform authenticator.
func NewClient(api *loginapi.Client, authn Authenticator) *Client {
	return &Client{api: api, authn: authn}
}

// Login runs an authentication ceremony.
func (c *Client) Login(ctx context.Context) (loginflow.Result, error) {
	wire, err := c.api.WebAuthnStart(ctx)
	if err != nil {
		return loginflow.Result{}, err
	}

	opts, err := decodeRequestOptions(wire)
	if err != nil {
		return loginflow.Result{}, &loginflow.Error{
			Type:    loginflow.ErrorTypeCeremony,
			Message: "The security key challenge could not be read",
		}
	}

	assertion, err := c.authn.GetAssertion(ctx, opts)
	if err != nil {
		return loginflow.Result{}, ceremonyError(err)
	}

	return c.api.WebAuthnFinish(ctx, encodeAssertion(assertion))
}

// Register runs a registration ceremony for the authenticated account.
func (c *Client) Register(ctx context.Context, displayName string) error {
	wire, err := c.api.RegisterWebAuthnStart(ctx)
	if err != nil {
		return err
	}

	opts, err := decodeCreationOptions(wire)
	if err != nil {
		return &loginflow.Error{
			Type:    loginflow.ErrorTypeCeremony,
			Message: "The security key challenge could not be read",
		}
	}

	attestation, err := c.authn.CreateCredential(ctx, opts)
	if err != nil {
		return ceremonyError(err)
	}

	payload := encodeAttestation(attestation)
	payload.DisplayName = displayName
	return c.api.RegisterWebAuthnFinish(ctx, payload)
}

func ceremonyError(err error) error {
	if errors.Is(err, ErrCeremonyCancelled) {
		return &loginflow.Error{
			Type:    loginflow.ErrorTypeCeremony,
			Message: "The security key prompt was dismissed",
		}
	}
	slog.Warn("Authenticator ceremony failed", "error", err)
	return &loginflow.Error{
		Type:    loginflow.ErrorTypeCeremony,
		Message: "The security key could not complete the request",
	}
}

func decodeRequestOptions(wire loginapi.CredentialRequestOptions) (AssertionOptions, error) {
	challenge, err := DecodeBytes(wire.Challenge)
	if err != nil {
		return AssertionOptions{}, fmt.Errorf("decode challenge: %w", err)
	}
	allowed, err := decodeAll(wire.AllowCredentials)
	if err != nil {
		return AssertionOptions{}, fmt.Errorf("decode allowed credentials: %w", err)
	}
	return AssertionOptions{
		Challenge:            challenge,
		RPID:                 wire.RPID,
		AllowedCredentialIDs: allowed,
	}, nil
}

func decodeCreationOptions(wire loginapi.CredentialCreationOptions) (CreationOptions, error) {
	challenge, err := DecodeBytes(wire.Challenge)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("decode challenge: %w", err)
	}
	userID, err := DecodeBytes(wire.UserID)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("decode user id: %w", err)
	}
	excluded, err := decodeAll(wire.ExcludeCredentials)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("decode excluded credentials: %w", err)
	}
	return CreationOptions{
		Challenge:             challenge,
		RPID:                  wire.RPID,
		RPName:                wire.RPName,
		UserID:                userID,
		Username:              wire.Username,
		ExcludedCredentialIDs: excluded,
	}, nil
}

func decodeAll(values []string) ([][]byte, error) {
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		b, err := DecodeBytes(v)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func encodeAssertion(a Assertion) loginapi.AssertionPayload {
	return loginapi.AssertionPayload{
		ID:                EncodeBytes(a.ID),
		RawID:             EncodeBytes(a.RawID),
		Type:              a.Type,
		AuthenticatorData: EncodeBytes(a.AuthenticatorData),
		ClientDataJSON:    EncodeBytes(a.ClientDataJSON),
		Signature:         EncodeBytes(a.Signature),
		UserHandle:        EncodeBytes(a.UserHandle),
	}
}

func encodeAttestation(a Attestation) loginapi.AttestationPayload {
	return loginapi.AttestationPayload{
		ID:                EncodeBytes(a.ID),
		RawID:             EncodeBytes(a.RawID),
		Type:              a.Type,
		AttestationObject: EncodeBytes(a.AttestationObject),
		ClientDataJSON:    EncodeBytes(a.ClientDataJSON),
	}
}
