package model

type (
	// StoredKeys is the persisted form of the long-term identity.
	StoredKeys struct {
		SecretKeyHex string `json:"secret_key_hex" bson:"secret_key_hex"`
		PublicKeyHex string `json:"public_key_hex" bson:"public_key_hex"`
	}

	KeysInfo struct {
		PublicKey       string `json:"publicKey"`
		PublicKeyBech32 string `json:"publicKeyBech32"`
	}
)
