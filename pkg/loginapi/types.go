package loginapi

import (
	"github.com/aginhq/agin-login/pkg/factor"
	"github.com/aginhq/agin-login/pkg/loginflow"
)

// LoginOptionsResponse lists the primary factors available to a username.
type LoginOptionsResponse struct {
	Options []string `json:"options"`
}

// LoginResponse is the common response of every credential-submitting
// endpoint. Factor names are wire spellings; unknown ones are dropped at
// the boundary.
type LoginResponse struct {
	TwoFactorRequired bool     `json:"two_factor_required"`
	SecondFactors     []string `json:"second_factors,omitempty"`
	RecentFactor      string   `json:"recent_factor,omitempty"`
}

func (r LoginResponse) toResult() loginflow.Result {
	res := loginflow.Result{
		TwoFactorRequired: r.TwoFactorRequired,
		SecondFactors:     factor.ParseKinds(r.SecondFactors),
	}
	if k, ok := factor.ParseKind(r.RecentFactor); ok {
		res.RecentFactor = k
	}
	return res
}

// ErrorResponse is the error envelope used by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CredentialRequestOptions is the challenge bundle starting an
// authentication ceremony. Binary fields are base64 raw URL strings.
type CredentialRequestOptions struct {
	Challenge        string   `json:"challenge"`
	RPID             string   `json:"rp_id"`
	AllowCredentials []string `json:"allow_credentials,omitempty"`
	Timeout          int      `json:"timeout,omitempty"`
}

// AssertionPayload carries a signed authentication assertion back to the
// server. Binary fields are base64 raw URL strings.
type AssertionPayload struct {
	ID                string `json:"id"`
	RawID             string `json:"raw_id"`
	Type              string `json:"type"`
	AuthenticatorData string `json:"authenticator_data"`
	ClientDataJSON    string `json:"client_data_json"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"user_handle,omitempty"`
}

// CredentialCreationOptions is the challenge bundle starting a registration
// ceremony.
type CredentialCreationOptions struct {
	Challenge          string   `json:"challenge"`
	RPID               string   `json:"rp_id"`
	RPName             string   `json:"rp_name"`
	UserID             string   `json:"user_id"`
	Username           string   `json:"username"`
	ExcludeCredentials []string `json:"exclude_credentials,omitempty"`
	Timeout            int      `json:"timeout,omitempty"`
}

// AttestationPayload carries a newly created credential back to the server.
type AttestationPayload struct {
	ID                string `json:"id"`
	RawID             string `json:"raw_id"`
	Type              string `json:"type"`
	AttestationObject string `json:"attestation_object"`
	ClientDataJSON    string `json:"client_data_json"`
	DisplayName       string `json:"display_name,omitempty"`
}
