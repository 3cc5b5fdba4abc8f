package game

func songPuzzle() *Puzzle {
	return &Puzzle{
		Kind:     KindSong,
		Identity: "song:1109731",
		Target:   Target{ID: "1109731", Title: "Bohemian Rhapsody", Creator: "Queen"},
		Reveal:   RevealSpec{DurationsMs: []int{500, 1000, 4000, 8000, 16000, 30000}},
	}
}

func albumPuzzle() *Puzzle {
	return &Puzzle{
		Kind:     KindAlbum,
		Identity: "album:302127",
		Target:   Target{ID: "302127", Title: "Nevermind", Creator: "Nirvana"},
		Reveal:   RevealSpec{PixelFactors: []int{60, 40, 25, 15, 8, 1}},
	}
}

func lyricsPuzzle() *Puzzle {
	return &Puzzle{
		Kind:     KindLyrics,
		Identity: "lyrics:3135556",
		Target:   Target{ID: "3135556", Title: "Billie Jean", Creator: "Michael Jackson"},
		Reveal: RevealSpec{Lines: []string{
			"She was more like a beauty queen",
			"From a movie scene",
			"I said don't mind,",
			"But what do you mean,",
			"I am the one",
			"Who will dance on the floor in the round?",
		}},
	}
}

func clipPuzzle() *Puzzle {
	return &Puzzle{
		Kind:     KindClip,
		Identity: "clip:djV11Xbc914",
		Target:   Target{ID: "djV11Xbc914", Title: "a-ha - Take On Me", Media: "djV11Xbc914"},
		Reveal:   RevealSpec{OffsetsSec: []int{162, 15, 50, 90, 130, 175}},
	}
}

func mashupPuzzle() *Puzzle {
	return &Puzzle{
		Kind:     KindMashup,
		Identity: "mashup:1109731",
		Slots: []Target{
			{ID: "1109731", Title: "Bohemian Rhapsody", Creator: "Queen"},
			{ID: "6569065", Title: "Smells Like Teen Spirit", Creator: "Nirvana"},
			{ID: "112233", Title: "Eye of the Tiger", Creator: "Survivor"},
		},
		Reveal: RevealSpec{DurationsMs: []int{1000, 2000, 4000, 8000, 16000, 30000}},
	}
}

func cand(id, title, creator string) Candidate {
	return Candidate{ID: id, Title: title, Creator: creator}
}
