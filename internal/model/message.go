package model

type (
	// ExchangeMessage is the signed pairing payload carried over NFC or QR.
	ExchangeMessage struct {
		Version     uint32  `json:"version"`
		Type        string  `json:"type"`
		Pubkey      string  `json:"pubkey"`
		TheirPubkey *string `json:"theirPubkey"`
		Timestamp   uint64  `json:"timestamp"`
		Nonce       string  `json:"nonce"`
		Signature   string  `json:"signature"`
	}

	ChatMessage struct {
		ID           string `json:"id"`
		Content      string `json:"content"`
		SenderPubkey string `json:"senderPubkey"`
		Timestamp    uint64 `json:"timestamp"`
		IsOutgoing   bool   `json:"isOutgoing"`
	}

	// WireMessage is the body of one chat frame. The sender is taken from the
	// connection, never from the payload.
	WireMessage struct {
		ID        string `json:"id"`
		Content   string `json:"content"`
		Timestamp uint64 `json:"timestamp"`
	}
)
