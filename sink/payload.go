package sink

// TPUpdate is posted whenever a player's tactical points change.
type TPUpdate struct {
	Name string `json:"name"`
	ID   uint32 `json:"id"`
	TP   int32  `json:"tp"`
}

func (u TPUpdate) Player() string { return u.Name }

// ChatLine is one message inside a ChatBatch. Index is 1-based.
type ChatLine struct {
	Index     int    `json:"index"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
	Raw       string `json:"raw"`
}

// ChatBatch carries the messages of one type flushed for one player.
type ChatBatch struct {
	Name     string     `json:"name"`
	ID       uint32     `json:"id"`
	Type     string     `json:"type"`
	Messages []ChatLine `json:"messages"`
}

func (b ChatBatch) Player() string { return b.Name }
