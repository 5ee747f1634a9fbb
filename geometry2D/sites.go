package geometry2D

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// site is a kd-tree point that remembers which node or element it came from.
type site struct {
	Point
	ID int
}

func (s site) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(site)
	if d == 0 {
		return s.X - q.X
	}
	return s.Y - q.Y
}

func (s site) Dims() int { return 2 }

// Distance is the squared euclidean distance.
func (s site) Distance(c kdtree.Comparable) float64 {
	return s.Dist2(c.(site).Point)
}

type sites []site

func (s sites) Index(i int) kdtree.Comparable         { return s[i] }
func (s sites) Len() int                              { return len(s) }
func (s sites) Pivot(d kdtree.Dim) int                { return sitePlane{sites: s, Dim: d}.Pivot() }
func (s sites) Slice(start, end int) kdtree.Interface { return s[start:end] }

type sitePlane struct {
	kdtree.Dim
	sites
}

func (p sitePlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.sites[i].X < p.sites[j].X
	}
	return p.sites[i].Y < p.sites[j].Y
}
func (p sitePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p sitePlane) Slice(start, end int) kdtree.SortSlicer {
	p.sites = p.sites[start:end]
	return p
}
func (p sitePlane) Swap(i, j int) { p.sites[i], p.sites[j] = p.sites[j], p.sites[i] }

// nearestSites returns up to k sites closest to q, nearest first.
func nearestSites(tree *kdtree.Tree, q Point, k int) (found []site) {
	if tree == nil || tree.Root == nil {
		return
	}
	keep := kdtree.NewNKeeper(k)
	tree.NearestSet(keep, site{Point: q, ID: -1})
	for _, cd := range keep.Heap {
		if cd.Comparable == nil || math.IsInf(cd.Dist, 1) {
			continue
		}
		found = append(found, cd.Comparable.(site))
	}
	sortSitesByDistance(found, q)
	return
}

// sitesWithin returns every site whose squared distance to q is at most d2.
func sitesWithin(tree *kdtree.Tree, q Point, d2 float64) (found []site) {
	if tree == nil || tree.Root == nil {
		return
	}
	keep := kdtree.NewDistKeeper(d2)
	tree.NearestSet(keep, site{Point: q, ID: -1})
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		found = append(found, cd.Comparable.(site))
	}
	sortSitesByDistance(found, q)
	return
}

func sortSitesByDistance(s []site, q Point) {
	// insertion sort, k is small; ties broken by lowest id
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			dj, dp := s[j].Dist2(q), s[j-1].Dist2(q)
			if dj < dp || (dj == dp && s[j].ID < s[j-1].ID) {
				s[j], s[j-1] = s[j-1], s[j]
				continue
			}
			break
		}
	}
}
