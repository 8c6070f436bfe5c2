package domain

// Session is the server-side state of one browser taking the experiment.
// The admin flag lives on the same record so a single cookie covers both views.
type Session struct {
	ID            SessionID
	ParticipantID ParticipantID
	CurrentBlock  BlockType
	CurrentTrial  int
	Admin         bool

	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// Trial is one stimulus presentation. It is never persisted on its own;
// only the participant's response to it becomes a ResultRecord.
type Trial struct {
	Stimulus        string
	TextColor       string
	BackgroundColor string
	Choices         []string
	DisplayTimeMS   int
	IsWord          bool
	Block           BlockType
	TrialNumber     int
}
