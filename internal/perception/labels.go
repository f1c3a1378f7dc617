// File: internal/perception/labels.go
package perception

// Labels is the fixed classification vocabulary scanned against every
// captured frame. The themes span social, combat-sport, technology and
// motorsport content.
var Labels = []string{
	"love", "couple", "romantic", "kissing", "fighting", "judo", "mma", "boxing", "jiujitsu", "programming", "robotics", "pcb",
	"microcontrollers", "party", "friendship", "motorcycles", "motogp", "motocross", "couple goals", "wedding", "date", "heart",
	"affection", "intimacy", "passion", "champion", "kickboxing", "wrestling", "combat sports", "technology", "electronics",
	"automation", "mechanical engineering", "arduino", "raspberry pi", "self-driving cars", "ai", "virtual reality", "coding",
	"programmer", "developer", "guitar", "dancing", "love story", "romantic dinner", "long distance relationship",
	"relationship goals", "friends", "bachelor party", "dance floor", "nightlife", "motorcycle racing", "dirt bike",
	"off-road racing", "rally", "superbike", "rider", "helmet", "adventure sports",
}
