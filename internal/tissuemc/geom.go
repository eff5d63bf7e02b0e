package tissuemc

import "math"

// reflect (assume unit I,N)
func reflect3(I, N Direction) Direction {
	return I.Sub(N.Mul(2 * I.Dot(N)))
}

// Refraction with side awareness.
// Contract: eta must be n1/n2 for the *current* interface (n1 = region being left).
// I and N must be unit; N may point either way, it is flipped to face I.
func refract3(I, N Direction, eta Real) (Direction, bool) {
	n := N
	cosi := I.Dot(N)
	if cosi > 0 {
		n = N.Mul(-1)
	} else {
		cosi = -cosi
	}
	cosi = clamp(cosi, 0, 1)
	k := 1 - eta*eta*(1-cosi*cosi)
	if k < 0 {
		return Direction{}, false // total internal reflection
	}
	T := I.Mul(eta).Add(n.Mul(eta*cosi - math.Sqrt(k)))
	return T.Norm(), true
}

// fresnel returns the unpolarized reflection probability for light going from
// index n1 to n2 with incidence cosine cosi in [0,1], and the cosine of the
// transmitted angle.
func fresnel(n1, n2, cosi Real) (r, cost Real) {
	switch {
	case n1 == n2:
		return 0, cosi
	case cosi > 1-epsDirection:
		r0 := (n2 - n1) / (n2 + n1)
		return r0 * r0, cosi
	case cosi < cosNinety:
		return 1, 0
	}
	sini := math.Sqrt(1 - cosi*cosi)
	sint := n1 * sini / n2
	if sint >= 1 {
		return 1, 0
	}
	cost = math.Sqrt(1 - sint*sint)
	cap := cosi*cost - sini*sint // cos(a+b)
	cam := cosi*cost + sini*sint // cos(a-b)
	sap := sini*cost + cosi*sint // sin(a+b)
	sam := sini*cost - cosi*sint // sin(a-b)
	r = 0.5 * sam * sam * (cam*cam + cap*cap) / (sap * sap * cam * cam)
	return clamp(r, 0, 1), cost
}
