// Package spatial provides the broad-phase index used for collision
// candidate queries.
//
// The tree is rebuilt from scratch every frame, so node structs and object
// slices are recycled between frames instead of reallocated.
package spatial

// Collider is anything with circular bounds.
type Collider interface {
	Circle() (x, y, r float64)
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Quadrant indices. Y grows downward, so "top" is the smaller Y half.
const (
	quadTopRight    = 0
	quadTopLeft     = 1
	quadBottomLeft  = 2
	quadBottomRight = 3
	quadNone        = -1
)

type node struct {
	bounds   Rect
	depth    int
	objects  []Collider
	children [4]*node
	split    bool
}

// Quadtree partitions the play area into recursively split quadrants.
//
// An object descends into a child only when its whole circle fits strictly
// inside that child's half on both axes. Objects touching or straddling a
// midpoint stay at the current node, and queries for such objects fan out to
// every child. That keeps retrieval free of false negatives.
type Quadtree struct {
	root     *node
	capacity int
	maxDepth int

	// recycled nodes from the previous Clear
	spare []*node

	nodeCount   int
	objectCount int
	deepest     int
}

// QuadtreeStats contains tree statistics for debugging and metrics.
type QuadtreeStats struct {
	Nodes    int `json:"nodes"`
	Objects  int `json:"objects"`
	MaxDepth int `json:"maxDepth"`
}

// NewQuadtree creates a tree covering bounds. A node splits once it holds
// more than capacity objects, down to maxDepth levels below the root.
func NewQuadtree(bounds Rect, capacity, maxDepth int) *Quadtree {
	if capacity < 1 {
		capacity = 1
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	q := &Quadtree{
		capacity: capacity,
		maxDepth: maxDepth,
	}
	q.Init(bounds)
	return q
}

// Init (re)creates the root over bounds. Call it when the play area is resized.
func (q *Quadtree) Init(bounds Rect) {
	if q.root != nil {
		q.recycle(q.root)
	}
	q.root = q.newNode(bounds, 0)
	q.nodeCount = 1
	q.objectCount = 0
	q.deepest = 0
}

// Bounds returns the root rectangle.
func (q *Quadtree) Bounds() Rect {
	return q.root.bounds
}

// Clear empties the tree but keeps the root bounds.
func (q *Quadtree) Clear() {
	q.Init(q.root.bounds)
}

// Insert adds an object to the tree.
func (q *Quadtree) Insert(obj Collider) {
	q.objectCount++
	q.insert(q.root, obj)
}

func (q *Quadtree) insert(n *node, obj Collider) {
	if n.split {
		if idx := n.index(obj); idx != quadNone {
			q.insert(n.children[idx], obj)
			return
		}
	}

	n.objects = append(n.objects, obj)

	if len(n.objects) <= q.capacity || n.depth >= q.maxDepth {
		return
	}
	if !n.split {
		q.splitNode(n)
	}

	// Push down everything that now fits a child; straddlers stay here.
	kept := n.objects[:0]
	for _, o := range n.objects {
		if idx := n.index(o); idx != quadNone {
			q.insert(n.children[idx], o)
		} else {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(n.objects); i++ {
		n.objects[i] = nil
	}
	n.objects = kept
}

// Retrieve appends every object that may overlap obj to out and returns it.
// The result includes obj itself when obj is in the tree.
func (q *Quadtree) Retrieve(obj Collider, out []Collider) []Collider {
	return q.retrieve(q.root, obj, out)
}

func (q *Quadtree) retrieve(n *node, obj Collider, out []Collider) []Collider {
	out = append(out, n.objects...)
	if !n.split {
		return out
	}
	if idx := n.index(obj); idx != quadNone {
		return q.retrieve(n.children[idx], obj, out)
	}
	for _, child := range n.children {
		out = q.retrieve(child, obj, out)
	}
	return out
}

// Stats returns the current tree shape.
func (q *Quadtree) Stats() QuadtreeStats {
	return QuadtreeStats{
		Nodes:    q.nodeCount,
		Objects:  q.objectCount,
		MaxDepth: q.deepest,
	}
}

// Walk visits every node rectangle depth-first with its depth and the number
// of objects stored directly in it.
func (q *Quadtree) Walk(fn func(bounds Rect, depth, count int)) {
	var walk func(n *node)
	walk = func(n *node) {
		fn(n.bounds, n.depth, len(n.objects))
		if n.split {
			for _, c := range n.children {
				walk(c)
			}
		}
	}
	walk(q.root)
}

// index classifies obj into a child quadrant, or quadNone when its circle
// touches or crosses either midpoint.
func (n *node) index(obj Collider) int {
	x, y, r := obj.Circle()
	midX := n.bounds.X + n.bounds.W/2
	midY := n.bounds.Y + n.bounds.H/2

	top := y+r < midY
	bottom := y-r > midY
	left := x+r < midX
	right := x-r > midX

	switch {
	case top && right:
		return quadTopRight
	case top && left:
		return quadTopLeft
	case bottom && left:
		return quadBottomLeft
	case bottom && right:
		return quadBottomRight
	}
	return quadNone
}

func (q *Quadtree) splitNode(n *node) {
	hw, hh := n.bounds.W/2, n.bounds.H/2
	x, y := n.bounds.X, n.bounds.Y
	d := n.depth + 1

	n.children[quadTopRight] = q.newNode(Rect{X: x + hw, Y: y, W: hw, H: hh}, d)
	n.children[quadTopLeft] = q.newNode(Rect{X: x, Y: y, W: hw, H: hh}, d)
	n.children[quadBottomLeft] = q.newNode(Rect{X: x, Y: y + hh, W: hw, H: hh}, d)
	n.children[quadBottomRight] = q.newNode(Rect{X: x + hw, Y: y + hh, W: hw, H: hh}, d)
	n.split = true

	q.nodeCount += 4
	if d > q.deepest {
		q.deepest = d
	}
}

func (q *Quadtree) newNode(bounds Rect, depth int) *node {
	var n *node
	if k := len(q.spare); k > 0 {
		n = q.spare[k-1]
		q.spare = q.spare[:k-1]
	} else {
		n = &node{}
	}
	n.bounds = bounds
	n.depth = depth
	n.split = false
	return n
}

func (q *Quadtree) recycle(n *node) {
	if n.split {
		for i, c := range n.children {
			q.recycle(c)
			n.children[i] = nil
		}
	}
	clear(n.objects)
	n.objects = n.objects[:0]
	n.split = false
	q.spare = append(q.spare, n)
}
