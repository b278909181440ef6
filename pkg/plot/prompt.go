package plot

const extractionPrompt = `You are a story analyser/writer in a big production house. Read the story provided by the user and identify:

1. Characters: Provide an array 'characters' with:
   - id (int), common_name, main_character (bool), names (array of strings), description (brief), and a list of core traits (array of strings).

2. Relations: Provide an array 'relations' with:
   - id1, id2 (the character IDs),
   - id1_to_id2_role: how id1 relates to id2 (e.g., 'father', 'mentor', 'enemy').
   - id2_to_id1_role: how id2 sees id1 (e.g., 'son', 'disciple', 'rival').
   - weight: strength or importance of the relationship, 1 to 10.
   - key_dialogs: up to two direct quotes (verbatim lines) exchanged between the two characters that are:
       - Famous, memorable, widely cited or emotionally significant
       - Central to the relationship's arc or turning points in the story
       - Representative of tension, affection, conflict, or a major plot event

3. Summary: The 'summary' should be a human-readable text block that includes the main plot, key players, and act-wise breakdown, written in clear prose (no JSON, lists or underscored names).

Return valid JSON with exactly 'characters', 'relations' and 'summary'. No extra commentary.`

const validationPrompt = `You are an expert literary analyst. The user provides a story excerpt together with structured JSON extracted from it. Validate the extracted information:
- Are the characters and relationships correctly reflected in the story?
- Are any hallucinated (non-existent) elements present?
- Are you familiar with the story and can verify the accuracy of this analysis?

Return only a JSON object with:
  known_story: true or false,
  issues: list of hallucinated, missing, or inaccurate elements,
  notes: a brief comment on the overall accuracy,
  score: integer between 0 and 10.
No extra commentary.`
