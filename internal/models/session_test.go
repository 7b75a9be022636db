package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionStateWireNames(t *testing.T) {
	yes := true
	tests := []struct {
		name    string
		state   SessionState
		itemKey string
		extra   string
	}{
		{
			"flashcard",
			SessionState{QuizType: QuizTypeFlashcard, Items: []QuizItem{{ID: "card-0"}}, Results: []*bool{&yes}, Flashcard: &FlashcardData{IsFlipped: true}},
			"shuffledCards", "isFlipped",
		},
		{
			"qa",
			SessionState{QuizType: QuizTypeQA, Items: []QuizItem{{ID: "qa-0"}}, Results: []*bool{nil}, QA: &QAData{IsReviewing: true, ReviewQueue: []int{0}}},
			"shuffledQuestions", "reviewQueue",
		},
		{
			"multiple-choice",
			SessionState{QuizType: QuizTypeMultipleChoice, Items: []QuizItem{{ID: "question-0"}}, Results: []*bool{nil}, MultipleChoice: &MultipleChoiceData{Selections: map[string][]int{"question-0": {1}}}},
			"shuffledQuestions", "selections",
		},
		{
			"classification",
			SessionState{QuizType: QuizTypeClassification, Items: []QuizItem{{ID: "Fruit-0"}}, Results: []*bool{nil}, Classification: &ClassificationData{ShowResults: true}},
			"shuffledItems", "showResults",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := json.Marshal(tc.state)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(data, &raw); err != nil {
				t.Fatalf("unmarshal raw: %v", err)
			}
			if _, ok := raw[tc.itemKey]; !ok {
				t.Fatalf("expected %q in %s", tc.itemKey, data)
			}
			var additional map[string]json.RawMessage
			if err := json.Unmarshal(raw["additionalData"], &additional); err != nil {
				t.Fatalf("additionalData: %v", err)
			}
			if _, ok := additional[tc.extra]; !ok {
				t.Fatalf("expected additionalData.%s in %s", tc.extra, raw["additionalData"])
			}

			var back SessionState
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if back.QuizType != tc.state.QuizType || len(back.Items) != 1 || back.Items[0].ID != tc.state.Items[0].ID {
				t.Fatalf("decoded state differs: %+v", back)
			}
		})
	}
}

func TestSessionStateDecodesLegacyRecords(t *testing.T) {
	tests := []struct {
		name string
		json string
		want QuizType
	}{
		{"cards", `{"currentIndex":1,"shuffledCards":[{"id":"card-0"},{"id":"card-1"}],"results":[null,true],"studiedItems":["card-0"],"additionalData":{"isFlipped":true}}`, QuizTypeFlashcard},
		{"questions", `{"currentIndex":0,"shuffledQuestions":[{"id":"qa-0"}],"results":[null],"studiedItems":[],"additionalData":{}}`, QuizTypeQA},
		{"items", `{"currentIndex":0,"shuffledItems":[{"id":"Fruit-0"}],"results":[null],"studiedItems":[],"additionalData":{"categories":[]}}`, QuizTypeClassification},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var st SessionState
			if err := json.Unmarshal([]byte(tc.json), &st); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if st.QuizType != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, st.QuizType)
			}
			if len(st.Items) == 0 || len(st.Items) != len(st.Results) {
				t.Fatalf("items/results mismatch: %+v", st)
			}
		})
	}
}

func TestSessionStateFinishedFields(t *testing.T) {
	score := 80
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := SessionState{
		QuizType:       QuizTypeQA,
		CurrentIndex:   2,
		Items:          []QuizItem{{ID: "qa-0"}, {ID: "qa-1"}},
		Results:        []*bool{nil, nil},
		CompletedItems: 2,
		LastStudyDate:  &when,
		IsFinished:     true,
		Score:          &score,
		QA:             &QAData{},
	}
	data, err := json.Marshal(st)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back SessionState
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !back.IsFinished || back.Score == nil || *back.Score != 80 || back.CompletedItems != 2 {
		t.Fatalf("finished fields lost: %+v", back)
	}
	if back.LastStudyDate == nil || !back.LastStudyDate.Equal(when) {
		t.Fatalf("last study date lost: %v", back.LastStudyDate)
	}
}
