package numeric

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		in    string
		ok    bool
		value int64
	}{
		{"0", true, 0},
		{"-0", true, 0},
		{"12", true, 12},
		{"-12", true, -12},
		{"007", false, 0},
		{"00", false, 0},
		{"", false, 0},
		{"-", false, 0},
		{"abc", false, 0},
		{"9223372036854775807", true, 9223372036854775807},
		{"-9223372036854775808", true, -9223372036854775808},
		{"9223372036854775808", false, 0},
		{"1a", false, 0},
		{"+1", false, 0},
	}
	for _, c := range cases {
		n, ok := Classify([]byte(c.in))
		if ok != c.ok {
			t.Errorf("Classify(%q): expected ok=%v, got %v", c.in, c.ok, ok)
			continue
		}
		if ok && n != c.value {
			t.Errorf("Classify(%q): expected %d, got %d", c.in, c.value, n)
		}
	}
}
