package momo

import (
	"encoding/json"
	"fmt"
)

// POST /collection/token/
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type Party struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// requesttopayのボディ
type RequestToPay struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	Payer        Party  `json:"payer"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
}

// NewRequestToPay はMSISDN宛の支払い依頼を作る
func NewRequestToPay(amount, currency, externalID, msisdn string) RequestToPay {
	return RequestToPay{
		Amount:     amount,
		Currency:   currency,
		ExternalID: externalID,
		Payer: Party{
			PartyIDType: "MSISDN",
			PartyID:     msisdn,
		},
		PayerMessage: "Payment for order",
		PayeeNote:    "Order payment",
	}
}

// ステータス照会とwebhookで共通の形
type RequestToPayResult struct {
	ReferenceID            string `json:"referenceId,omitempty"`
	FinancialTransactionID string `json:"financialTransactionId,omitempty"`
	ExternalID             StringOrNumber `json:"externalId"`
	Amount                 StringOrNumber `json:"amount,omitempty"`
	Currency               string `json:"currency,omitempty"`
	Payer                  *Party `json:"payer,omitempty"`
	PayerMessage           string `json:"payerMessage,omitempty"`
	PayeeNote              string `json:"payeeNote,omitempty"`
	Status                 string `json:"status"`
	Reason                 Reason `json:"reason,omitempty"`
}

// MoMoは文字列で送るが、数値で送ってくる送信元もある
type StringOrNumber string

func (s StringOrNumber) String() string { return string(s) }

func (s *StringOrNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = StringOrNumber(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("momo: expected string or number: %w", err)
	}
	*s = StringOrNumber(n.String())
	return nil
}

// reasonは文字列のときと{code,message}のときがある
type Reason struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r Reason) IsZero() bool { return r.Code == "" && r.Message == "" }

func (r Reason) String() string {
	switch {
	case r.Code != "" && r.Message != "":
		return r.Code + ": " + r.Message
	case r.Code != "":
		return r.Code
	default:
		return r.Message
	}
}

func (r *Reason) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Reason{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = Reason{Code: s}
		return nil
	}
	type plain Reason
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("momo: reason: %w", err)
	}
	*r = Reason(p)
	return nil
}

func (r Reason) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	type plain Reason
	return json.Marshal(plain(r))
}

// sandboxのAPIユーザー
type APIUser struct {
	ProviderCallbackHost string `json:"providerCallbackHost"`
	TargetEnvironment    string `json:"targetEnvironment"`
}
