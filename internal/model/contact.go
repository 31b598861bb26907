package model

type (
	Contact struct {
		ID          string  `json:"id" bson:"id"`
		NostrPubkey string  `json:"nostrPubkey" bson:"nostr_pubkey"`
		EndpointID  string  `json:"irohEndpointId" bson:"endpoint_id"`
		ExchangedAt uint64  `json:"exchangedAt" bson:"exchanged_at"`
		Nickname    *string `json:"nickname" bson:"nickname,omitempty"`
	}

	NodeStatus struct {
		Running           bool     `json:"running"`
		NodeID            *string  `json:"nodeId"`
		RelayURL          *string  `json:"relayUrl"`
		ConnectedContacts []string `json:"connectedContacts"`
	}
)
