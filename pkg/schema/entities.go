package schema

// Analysis is the structured output of one extraction pass over a story.
type Analysis struct {
	Characters []Character `json:"characters" jsonschema_description:"Extracted characters from the text"`
	Relations  []Relation  `json:"relations" jsonschema_description:"List of relationships among characters"`
	Summary    string      `json:"summary" jsonschema_description:"A detailed natural language summary of the story including the main plot, key players, and act-level breakdown, written as plain prose"`
}

type Character struct {
	ID            int      `json:"id" jsonschema_description:"Unique integer identifying each character"`
	CommonName    string   `json:"common_name" jsonschema_description:"The primary or most frequent name"`
	MainCharacter bool     `json:"main_character" jsonschema_description:"True if major character in the story"`
	Names         []string `json:"names" jsonschema_description:"All known aliases, nicknames, or titles"`
	Traits        []string `json:"traits,omitempty" jsonschema_description:"Key personality traits or defining characteristics (e.g. brave, manipulative, loyal)"`
	Description   string   `json:"description,omitempty" jsonschema_description:"Brief summary of this character's role"`
}

type Relation struct {
	ID1          int      `json:"id1" jsonschema_description:"ID of the first character"`
	ID2          int      `json:"id2" jsonschema_description:"ID of the second character"`
	ID1ToID2Role string   `json:"id1_to_id2_role" jsonschema_description:"Role of id1 toward id2 (e.g., 'father', 'mentor', 'enemy')"`
	ID2ToID1Role string   `json:"id2_to_id1_role" jsonschema_description:"Role of id2 toward id1 (e.g., 'son', 'disciple', 'rival')"`
	Weight       float64  `json:"weight" jsonschema_description:"Strength or importance of the relationship (1 to 10)"`
	KeyDialogs   []string `json:"key_dialogs" jsonschema_description:"Up to two short lines or dialogues from the text that highlight significance"`
}

// Validation is the verdict of the second pass that cross-checks an Analysis
// against the source text.
type Validation struct {
	KnownStory bool     `json:"known_story" jsonschema_description:"Whether the model recognizes and is familiar with the story"`
	Issues     []string `json:"issues" jsonschema_description:"List of hallucinations, inaccuracies, or missing elements in the structured JSON"`
	Notes      string   `json:"notes" jsonschema_description:"General comments on the quality and accuracy of the JSON"`
	Score      int      `json:"score" jsonschema_description:"Quality score between 0 and 10 indicating overall correctness and completeness"`
}

// Metadata is the bibliographic record scraped for one book.
type Metadata struct {
	Title  string `json:"title"`
	Author string `json:"author"`
}
