package domain

// Label sentiment classification of a single reading.
type Label string

const (
	LabelExtremeFear  Label = "Extreme Fear"
	LabelFear         Label = "Fear"
	LabelNeutral      Label = "Neutral"
	LabelGreed        Label = "Greed"
	LabelExtremeGreed Label = "Extreme Greed"
)

// String returns the string representation.
func (l Label) String() string {
	return string(l)
}
