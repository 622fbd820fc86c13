package data

import "strconv"

// SpambaseWidth is the number of feature columns in the UCI Spambase file.
const SpambaseWidth = 57

// spambaseNames are the UCI Spambase attribute names; the file itself has no header.
var spambaseNames = []string{
	"word_freq_make", "word_freq_address", "word_freq_all", "word_freq_3d",
	"word_freq_our", "word_freq_over", "word_freq_remove", "word_freq_internet",
	"word_freq_order", "word_freq_mail", "word_freq_receive", "word_freq_will",
	"word_freq_people", "word_freq_report", "word_freq_addresses", "word_freq_free",
	"word_freq_business", "word_freq_email", "word_freq_you", "word_freq_credit",
	"word_freq_your", "word_freq_font", "word_freq_000", "word_freq_money",
	"word_freq_hp", "word_freq_hpl", "word_freq_george", "word_freq_650",
	"word_freq_lab", "word_freq_labs", "word_freq_telnet", "word_freq_857",
	"word_freq_data", "word_freq_415", "word_freq_85", "word_freq_technology",
	"word_freq_1999", "word_freq_parts", "word_freq_pm", "word_freq_direct",
	"word_freq_cs", "word_freq_meeting", "word_freq_original", "word_freq_project",
	"word_freq_re", "word_freq_edu", "word_freq_table", "word_freq_conference",
	"char_freq_semicolon", "char_freq_paren", "char_freq_bracket", "char_freq_bang",
	"char_freq_dollar", "char_freq_hash",
	"capital_run_length_average", "capital_run_length_longest", "capital_run_length_total",
}

// DefaultFeatureNames names n headerless feature columns: the Spambase names when the width
// matches, otherwise x1..xn.
func DefaultFeatureNames(n int) []string {
	if n == SpambaseWidth {
		out := make([]string, n)
		copy(out, spambaseNames)
		return out
	}
	out := make([]string, n)
	for i := range out {
		out[i] = "x" + strconv.Itoa(i+1)
	}
	return out
}
