package story

// SeedStories is the hand-curated set the candidate pool is grown from.
func SeedStories() []Story {
	return []Story{
		{
			ID:    217107,
			Title: "Stranger Who Fell From The Sky",
			Intro: "You are Devin, plummeting towards Orario with no memory of how you got here...",
			Tags:  []string{"danmachi", "reincarnation", "heroic aspirations", "mystery origin", "teamwork", "loyalty", "protectiveness"},
		},
		{
			ID:    273613,
			Title: "Trapped Between Four Anime Legends!",
			Intro: "You're caught in a dimensional rift with four anime icons. Goku wants to spar...",
			Tags:  []string{"crossover", "jujutsu kaisen", "dragon ball", "naruto", "isekai", "dimensional travel", "reverse harem"},
		},
		{
			ID:    235701,
			Title: "New Transfer Students vs. Class 1-A Bully",
			Intro: "You and Zeroku watch in disgust as Bakugo torments Izuku again...",
			Tags:  []string{"my hero academia", "challenging authority", "bullying", "underdog", "disruptors"},
		},
		{
			ID:    214527,
			Title: "Zenitsu Touched Your Sister's WHAT?!",
			Intro: "Your peaceful afternoon at the Butterfly Estate shatters when Zenitsu accidentally gropes Nezuko...",
			Tags:  []string{"demon slayer", "protective instincts", "comedic panic", "violent reactions"},
		},
		{
			ID:    263242,
			Title: "Principal's Daughter Dating Contest",
			Intro: "You are Yuji Itadori, facing off against Tanjiro and Naruto for Ochako's heart...",
			Tags:  []string{"crossover", "romantic comedy", "forced proximity", "harem", "dating competition"},
		},
	}
}
