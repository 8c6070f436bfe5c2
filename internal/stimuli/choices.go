package stimuli

// Choices returns up to n distinct options containing correct exactly once,
// all drawn from correct's category. When the category holds fewer than n
// entries the result is shorter than n.
func (c *Catalog) Choices(correct string, n int, includeColorWords bool) ([]string, error) {
	cat, ok := c.category[correct]
	if !ok {
		return nil, ErrUnknownStimulus
	}
	if n < 1 {
		n = 1
	}
	isWord := c.IsWord(correct)

	available := make([]string, 0, len(c.pool(cat)))
	inPool := make(map[string]bool, len(c.pool(cat)))
	for _, w := range c.pool(cat) {
		if w != correct {
			available = append(available, w)
			inPool[w] = true
		}
	}

	var candidates []string

	candidates = append(candidates, firstN(c.t.SimilarDistractors[correct], inPool, 2)...)

	if includeColorWords && isWord {
		for _, assoc := range c.t.ColorAssociations {
			candidates = append(candidates, firstN(assoc.Words, inPool, 1)...)
		}
		candidates = append(candidates, firstN(c.t.ColorNames, inPool, 1)...)
	}

	candidates = append(candidates, visuallySimilar(correct, available, 2)...)

	target := []rune(correct)
	if len(target) >= 3 {
		prefix, suffix := string(target[:2]), string(target[len(target)-2:])
		var sameStart, sameEnd []string
		for _, w := range available {
			r := []rune(w)
			if len(r) < 3 {
				continue
			}
			if len(sameStart) == 0 && string(r[:2]) == prefix {
				sameStart = append(sameStart, w)
			}
			if len(sameEnd) == 0 && string(r[len(r)-2:]) == suffix {
				sameEnd = append(sameEnd, w)
			}
		}
		candidates = append(candidates, sameStart...)
		candidates = append(candidates, sameEnd...)
	}

	seen := map[string]bool{correct: true}
	unique := make([]string, 0, len(candidates))
	for _, w := range candidates {
		if !seen[w] {
			seen[w] = true
			unique = append(unique, w)
		}
	}

	want := n - 1
	var selected []string
	if len(unique) >= want {
		c.rng.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
		selected = unique[:want]
	} else {
		selected = unique
		remaining := make([]string, 0, len(available))
		for _, w := range available {
			if !seen[w] {
				remaining = append(remaining, w)
			}
		}
		for len(selected) < want && len(remaining) > 0 {
			i := c.rng.IntN(len(remaining))
			selected = append(selected, remaining[i])
			remaining[i] = remaining[len(remaining)-1]
			remaining = remaining[:len(remaining)-1]
		}
	}

	final := make([]string, 0, len(selected)+1)
	final = append(final, correct)
	final = append(final, selected...)
	c.rng.Shuffle(len(final), func(i, j int) { final[i], final[j] = final[j], final[i] })

	found := false
	for _, w := range final {
		if w == correct {
			found = true
			break
		}
	}
	if !found {
		final[0] = correct
	}

	if len(final) > n {
		final = final[:n]
	}
	return final, nil
}

// firstN keeps the first max entries of list that are in pool.
func firstN(list []string, pool map[string]bool, max int) []string {
	var out []string
	for _, w := range list {
		if len(out) == max {
			break
		}
		if pool[w] {
			out = append(out, w)
		}
	}
	return out
}

// visuallySimilar returns up to max entries with the same rune length as
// target that agree with it in at least two positions.
func visuallySimilar(target string, pool []string, max int) []string {
	t := []rune(target)
	var out []string
	for _, w := range pool {
		if len(out) == max {
			break
		}
		r := []rune(w)
		if len(r) != len(t) {
			continue
		}
		common := 0
		for i := range r {
			if r[i] == t[i] {
				common++
			}
		}
		if common >= 2 {
			out = append(out, w)
		}
	}
	return out
}
