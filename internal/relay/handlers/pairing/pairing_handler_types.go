package pairing

import "time"

type CreateRequest struct {
	IssuerPublicKey  string `json:"issuerPublicKey" binding:"required"`
	IssuerDeviceID   string `json:"issuerDeviceId" binding:"required"`
	IssuerDeviceName string `json:"issuerDeviceName"`
}

type CreateResponse struct {
	PairingID       string    `json:"pairingId"`
	Code            string    `json:"code"`
	IssuerPublicKey string    `json:"issuerPublicKey"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

type ResolveRequest struct {
	Code string `json:"code" binding:"required"`
}

type ResolveResponse struct {
	PairingID        string    `json:"pairingId"`
	IssuerPublicKey  string    `json:"issuerPublicKey"`
	IssuerDeviceID   string    `json:"issuerDeviceId"`
	IssuerDeviceName string    `json:"issuerDeviceName,omitempty"`
	ExpiresAt        time.Time `json:"expiresAt"`
}

type ClaimRequest struct {
	Code              string `json:"code" binding:"required"`
	ClaimerPublicKey  string `json:"claimerPublicKey" binding:"required"`
	ClaimerDeviceID   string `json:"claimerDeviceId" binding:"required"`
	ClaimerDeviceName string `json:"claimerDeviceName"`
}

type StatusResponse struct {
	Claimed           bool      `json:"claimed"`
	ClaimerPublicKey  string    `json:"claimerPublicKey,omitempty"`
	ClaimerDeviceID   string    `json:"claimerDeviceId,omitempty"`
	ClaimerDeviceName string    `json:"claimerDeviceName,omitempty"`
	Completed         bool      `json:"completed"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

type CompleteRequest struct {
	EncryptedKeyBundle string `json:"encryptedKeyBundle" binding:"required"`
}

type BundleResponse struct {
	EncryptedKeyBundle string `json:"encryptedKeyBundle"`
}
