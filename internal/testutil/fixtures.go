package testutil

import "github.com/mkarpis/prompttuner/internal/story"

// Stories returns a small fixed pool for tests.
func Stories() []story.Story {
	return []story.Story{
		{ID: 1, Title: "Dragon Academy", Intro: "You enroll at a school for dragon riders.", Tags: []string{"fantasy", "school", "dragons"}},
		{ID: 2, Title: "Midnight Heist", Intro: "The crew needs one last job to go right.", Tags: []string{"thriller", "crime", "teamwork"}},
		{ID: 3, Title: "Starship Graveyard", Intro: "Salvage runs turn deadly at the edge of known space.", Tags: []string{"sci-fi", "space", "mystery"}},
		{ID: 4, Title: "Cafe of Second Chances", Intro: "Every customer gets one do-over.", Tags: []string{"slice of life", "romance", "time travel"}},
		{ID: 5, Title: "Blade of the Exiled Prince", Intro: "Banished royalty returns with a grudge.", Tags: []string{"fantasy", "revenge", "swordplay"}},
	}
}

// Profile returns a test user whose tags lean towards fantasy stories.
func Profile() story.UserProfile {
	return story.UserProfile{
		UserID: 42,
		Tags:   []string{"fantasy", "dragons", "school", "adventure", "magic", "swordplay", "revenge"},
	}
}
