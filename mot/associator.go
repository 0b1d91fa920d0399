package mot

import (
	"fmt"
	"sort"

	"github.com/arthurkushman/go-hungarian"
)

// TrackBox pairs track ID with its current bounding box
type TrackBox struct {
	ID   int
	BBox Rectangle
}

// Associate finds the live track a detection box belongs to.
//
// A track is eligible when the box and the track box contain each other's centers
// (edges inclusive). Among eligible tracks the one with the highest IoU wins, equal IoU is
// resolved by the smallest ID, so the result does not depend on the order of tracks.
// Returns false when no track is eligible: caller should start a new track then.
func Associate(box DetectionBox, tracks []TrackBox) (int, bool) {
	boxRect := box.Rect()
	bestID := 0
	bestIoU := -1.0
	found := false
	for _, track := range tracks {
		if !mutuallyContained(boxRect, track.BBox) {
			continue
		}
		iou := IoU(boxRect, track.BBox)
		if !found || iou > bestIoU || (iou == bestIoU && track.ID < bestID) {
			bestID = track.ID
			bestIoU = iou
			found = true
		}
	}
	return bestID, found
}

// AssociationOutcome is the result for a single detection box
type AssociationOutcome uint8

const (
	// OutcomeUnmatched means no live track is eligible: a new track should be created
	OutcomeUnmatched AssociationOutcome = iota
	// OutcomeMatched means the box is claimed by TrackID
	OutcomeMatched
	// OutcomeSuppressed means eligible tracks exist but all of them were claimed by other boxes
	// (one-to-one algorithms only). No track is created for such box.
	OutcomeSuppressed
)

func (outcome AssociationOutcome) String() string {
	switch outcome {
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeMatched:
		return "matched"
	case OutcomeSuppressed:
		return "suppressed"
	default:
		return fmt.Sprintf("AssociationOutcome(%d)", outcome)
	}
}

// Association is the decision taken for one detection box
type Association struct {
	Box     DetectionBox
	Outcome AssociationOutcome
	// For OutcomeMatched the claimed track. For OutcomeUnmatched the track TrackManager
	// started for this box (AssociateBatch leaves it zero).
	TrackID int
}

// AssociateBatch associates every detection box of a frame with live tracks.
// Result is aligned with boxes.
func AssociateBatch(algorithm AssociationAlgorithm, boxes []DetectionBox, tracks []TrackBox) []Association {
	switch algorithm {
	case AssociationGreedy:
		return associateGreedy(boxes, tracks)
	case AssociationHungarian:
		return associateHungarian(boxes, tracks)
	default:
		return associateSequential(boxes, tracks)
	}
}

func associateSequential(boxes []DetectionBox, tracks []TrackBox) []Association {
	result := make([]Association, len(boxes))
	for i, box := range boxes {
		result[i] = Association{Box: box, Outcome: OutcomeUnmatched}
		if id, ok := Associate(box, tracks); ok {
			result[i].Outcome = OutcomeMatched
			result[i].TrackID = id
		}
	}
	return result
}

// eligiblePairs returns every (box, track) pair passing mutual containment.
// Second value tells whether a box has at least one eligible track.
func eligiblePairs(boxes []DetectionBox, tracks []TrackBox) ([]*candidatePair, []bool) {
	pairs := make([]*candidatePair, 0)
	hasEligible := make([]bool, len(boxes))
	for i, box := range boxes {
		boxRect := box.Rect()
		for _, track := range tracks {
			if !mutuallyContained(boxRect, track.BBox) {
				continue
			}
			pairs = append(pairs, &candidatePair{
				boxIndex: i,
				trackID:  track.ID,
				iou:      IoU(boxRect, track.BBox),
			})
			hasEligible[i] = true
		}
	}
	return pairs, hasEligible
}

// finalizeOneToOne fills outcome for boxes left without a track
func finalizeOneToOne(boxes []DetectionBox, assigned map[int]int, hasEligible []bool) []Association {
	result := make([]Association, len(boxes))
	for i, box := range boxes {
		result[i] = Association{Box: box, Outcome: OutcomeUnmatched}
		if id, ok := assigned[i]; ok {
			result[i].Outcome = OutcomeMatched
			result[i].TrackID = id
			continue
		}
		if hasEligible[i] {
			result[i].Outcome = OutcomeSuppressed
		}
	}
	return result
}

func associateGreedy(boxes []DetectionBox, tracks []TrackBox) []Association {
	pairs, hasEligible := eligiblePairs(boxes, tracks)
	priorityQueue := make(pairHeap, 0, len(pairs))
	for _, pair := range pairs {
		priorityQueue.Push(pair)
	}
	// box index -> track ID
	assigned := make(map[int]int)
	// We need to prevent double claim of tracks
	reservedTracks := make(map[int]struct{})
	for priorityQueue.Len() > 0 {
		pair := priorityQueue.Pop()
		if _, ok := assigned[pair.boxIndex]; ok {
			continue
		}
		if _, ok := reservedTracks[pair.trackID]; ok {
			continue
		}
		assigned[pair.boxIndex] = pair.trackID
		reservedTracks[pair.trackID] = struct{}{}
	}
	return finalizeOneToOne(boxes, assigned, hasEligible)
}

func associateHungarian(boxes []DetectionBox, tracks []TrackBox) []Association {
	pairs, hasEligible := eligiblePairs(boxes, tracks)
	if len(pairs) == 0 {
		return finalizeOneToOne(boxes, map[int]int{}, hasEligible)
	}

	trackIndex := make(map[int]int, len(tracks))
	for j, track := range tracks {
		trackIndex[track.ID] = j
	}

	// Square matrix is required, padding is done with 0.0 values (not eligible).
	// Every eligible pair weights more than any number of pairs fewer by one, so the
	// solver aims at the number of matches first and total IoU second.
	size := len(boxes)
	if len(tracks) > size {
		size = len(tracks)
	}
	bonus := float64(minInt(len(boxes), len(tracks)) + 1)
	matrix := make([][]float64, size)
	for i := range matrix {
		matrix[i] = make([]float64, size)
	}
	eligible := make(map[[2]int]struct{}, len(pairs))
	for _, pair := range pairs {
		j := trackIndex[pair.trackID]
		matrix[pair.boxIndex][j] = bonus + pair.iou
		eligible[[2]int{pair.boxIndex, j}] = struct{}{}
	}

	// box index -> track index, track index -> box index
	boxTrack := make([]int, len(boxes))
	trackOwner := make([]int, len(tracks))
	for i := range boxTrack {
		boxTrack[i] = -1
	}
	for j := range trackOwner {
		trackOwner[j] = -1
	}

	// Solver output is accepted only for eligible pairs reported with their own weight.
	// go-hungarian may pair a row with a column while reporting the weight of another cell.
	assignmentsMap := hungarian.SolveMax(matrix)
	for _, boxIndex := range sortedKeys(assignmentsMap) {
		rowMap := assignmentsMap[boxIndex]
		for _, j := range sortedKeys(rowMap) {
			if boxIndex >= len(boxes) || j >= len(tracks) {
				continue
			}
			if _, ok := eligible[[2]int{boxIndex, j}]; !ok {
				continue
			}
			if rowMap[j] != matrix[boxIndex][j] {
				continue
			}
			if boxTrack[boxIndex] >= 0 || trackOwner[j] >= 0 {
				continue
			}
			boxTrack[boxIndex] = j
			trackOwner[j] = boxIndex
		}
	}

	// Eligible tracks of every box, best IoU first. Boxes are repaired in order of their best IoU.
	adjacency := make([][]int, len(boxes))
	boxOrder := make([]int, 0, len(boxes))
	priorityQueue := make(pairHeap, 0, len(pairs))
	for _, pair := range pairs {
		priorityQueue.Push(pair)
	}
	for priorityQueue.Len() > 0 {
		pair := priorityQueue.Pop()
		if len(adjacency[pair.boxIndex]) == 0 {
			boxOrder = append(boxOrder, pair.boxIndex)
		}
		adjacency[pair.boxIndex] = append(adjacency[pair.boxIndex], trackIndex[pair.trackID])
	}

	// Augmenting paths bring the matching to maximum size whatever the solver left out
	var visited []bool
	var augment func(boxIndex int) bool
	augment = func(boxIndex int) bool {
		for _, j := range adjacency[boxIndex] {
			if visited[j] {
				continue
			}
			visited[j] = true
			if trackOwner[j] < 0 || augment(trackOwner[j]) {
				boxTrack[boxIndex] = j
				trackOwner[j] = boxIndex
				return true
			}
		}
		return false
	}
	for _, boxIndex := range boxOrder {
		if boxTrack[boxIndex] >= 0 {
			continue
		}
		visited = make([]bool, len(tracks))
		augment(boxIndex)
	}

	assigned := make(map[int]int)
	for boxIndex, j := range boxTrack {
		if j >= 0 {
			assigned[boxIndex] = tracks[j].ID
		}
	}
	return finalizeOneToOne(boxes, assigned, hasEligible)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
