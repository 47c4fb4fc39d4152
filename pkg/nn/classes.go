package nn

// Class is the closed set of object classes that the counting pipeline
// distinguishes. Everything that isn't a person or an umbrella collapses
// into ClassOther, so the correlator can match exhaustively.
type Class int

const (
	ClassPerson   Class = iota // primary countable class
	ClassUmbrella              // accessory class, may be merged into a person composite
	ClassOther                 // detected but never counted
)

func (c Class) String() string {
	switch c {
	case ClassPerson:
		return "person"
	case ClassUmbrella:
		return "umbrella"
	default:
		return "other"
	}
}

// COCO class indices for the classes we care about, for detectors that
// report raw class ids (yolov8 trained on COCO).
const (
	CocoPerson   = 0
	CocoUmbrella = 25
)

// ClassFromCoco maps a COCO class index onto our closed class set.
func ClassFromCoco(id int) Class {
	switch id {
	case CocoPerson:
		return ClassPerson
	case CocoUmbrella:
		return ClassUmbrella
	default:
		return ClassOther
	}
}
