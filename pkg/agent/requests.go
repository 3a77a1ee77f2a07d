package agent

// Delegation request shapes. The dispatcher's model fills these when calling
// a delegation tool; the wrapper validates arguments against the schema
// reflected from these structs before the specialist ever runs.

// KnowledgeQuery asks the knowledge specialist to answer from the workspace.
type KnowledgeQuery struct {
	SearchTerm      string `json:"search_term" jsonschema:"title=Search term,description=Short keyword phrase to search the workspace with"`
	UserQuestion    string `json:"user_question" jsonschema:"title=User question,description=The user's full question in natural language"`
	ReadFullContent bool   `json:"read_full_content,omitempty" jsonschema:"description=Fetch full page bodies instead of summaries"`
	MaxResults      int    `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum pages to consider"`
}

// CalendarQuery asks the scheduling specialist to read or change the
// calendar.
type CalendarQuery struct {
	Action          string `json:"action" jsonschema:"enum=read,enum=write,description=read lists events and write creates one"`
	TimeRange       string `json:"time_range,omitempty" jsonschema:"description=Natural-language window for reads such as 'this week'"`
	Title           string `json:"title,omitempty" jsonschema:"description=Event title for writes"`
	StartTime       string `json:"start_time,omitempty" jsonschema:"description=Event start in RFC3339 format for writes"`
	DurationMinutes int    `json:"duration_minutes,omitempty" jsonschema:"minimum=1,description=Event length in minutes"`
	Description     string `json:"description,omitempty"`
	Location        string `json:"location,omitempty"`
}

// ChitchatQuery carries small talk to the chitchat specialist.
type ChitchatQuery struct {
	Message string `json:"message" jsonschema:"description=The user's message verbatim"`
}

// RecallQuery asks the recall specialist to surface earlier conversation.
type RecallQuery struct {
	Query       string `json:"query" jsonschema:"description=What to look for in the conversation history"`
	Mode        string `json:"mode,omitempty" jsonschema:"enum=recent,enum=smart,enum=llm,default=smart,description=recent returns the latest turns verbatim; smart filters by keyword; llm asks the model to summarize the relevant turns"`
	MaxMessages int    `json:"max_messages,omitempty" jsonschema:"minimum=1,maximum=50,default=20,description=How many messages to consider"`
}
