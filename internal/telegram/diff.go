package telegram

// changedChars measures how different two texts are: rune mismatches
// position by position over the shared prefix length, plus the length
// difference. Deliberately not a real edit distance; the threshold setting
// is calibrated against this exact metric.
func changedChars(oldText, newText string) int {
	a := []rune(oldText)
	b := []rune(newText)

	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	changed := 0
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			changed++
		}
	}

	if len(a) > len(b) {
		changed += len(a) - len(b)
	} else {
		changed += len(b) - len(a)
	}
	return changed
}
