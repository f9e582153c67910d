package earthengine

import "github.com/couchcryptid/diversity-predict-service/internal/domain"

// Earth Engine REST expression graph types. A request carries one root
// value; arguments nest inline rather than through value references.

type expression struct {
	Result string               `json:"result"`
	Values map[string]valueNode `json:"values"`
}

type valueNode struct {
	ConstantValue           any         `json:"constantValue,omitempty"`
	FunctionInvocationValue *invocation `json:"functionInvocationValue,omitempty"`
}

type invocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]valueNode `json:"arguments,omitempty"`
}

type args map[string]valueNode

func newExpression(root valueNode) expression {
	return expression{Result: "0", Values: map[string]valueNode{"0": root}}
}

func call(name string, a args) valueNode {
	return valueNode{FunctionInvocationValue: &invocation{FunctionName: name, Arguments: a}}
}

func constant(v any) valueNode {
	return valueNode{ConstantValue: v}
}

// regionGeometry is the bounding box of a buffer around the query point.
func regionGeometry(q domain.SceneQuery) valueNode {
	point := call("GeometryConstructors.Point", args{
		"coordinates": constant([]float64{q.Center.Lon, q.Center.Lat}),
	})
	return call("Geometry.bounds", args{
		"geometry": call("Geometry.buffer", args{
			"geometry": point,
			"distance": constant(q.BufferMeters),
		}),
	})
}

// filteredCollection applies the bounds, date and cloud filters.
func filteredCollection(collectionID string, q domain.SceneQuery, region valueNode) valueNode {
	c := call("ImageCollection.load", args{"id": constant(collectionID)})

	c = call("Collection.filter", args{
		"collection": c,
		"filter": call("Filter.intersects", args{
			"leftField":  constant(".all"),
			"rightValue": region,
		}),
	})

	c = call("Collection.filter", args{
		"collection": c,
		"filter": call("Filter.dateRangeContains", args{
			"leftValue": call("DateRange", args{
				"start": call("Date", args{"value": constant(q.Start.UnixMilli())}),
				"end":   call("Date", args{"value": constant(q.End.UnixMilli())}),
			}),
			"rightField": constant("system:time_start"),
		}),
	})

	return call("Collection.filter", args{
		"collection": c,
		"filter": call("Filter.lessThan", args{
			"leftField":  constant("CLOUDY_PIXEL_PERCENTAGE"),
			"rightValue": constant(q.MaxCloudPercent),
		}),
	})
}

// medianComposite reduces the collection per pixel, keeping band names.
func medianComposite(collection valueNode) valueNode {
	return call("reduce.median", args{"collection": collection})
}

func selectBands(img valueNode, bands ...string) valueNode {
	return call("Image.select", args{"input": img, "bandSelectors": constant(bands)})
}

func rename(img valueNode, name string) valueNode {
	return call("Image.rename", args{"input": img, "names": constant([]string{name})})
}

func binary(fn string, a, b valueNode) valueNode {
	return call(fn, args{"image1": a, "image2": b})
}

func imageConstant(v float64) valueNode {
	return call("Image.constant", args{"value": constant(v)})
}

func normalizedDifference(img valueNode, a, b, name string) valueNode {
	nd := call("Image.normalizedDifference", args{"input": img, "bandNames": constant([]string{a, b})})
	return rename(nd, name)
}

// enhancedVegetationIndex is 2.5 * (NIR - RED) / (NIR + 6*RED - 7.5*BLUE + 1).
func enhancedVegetationIndex(img valueNode) valueNode {
	nir := selectBands(img, domain.BandNIR)
	red := selectBands(img, domain.BandRed)
	blue := selectBands(img, domain.BandBlue)

	numerator := binary("Image.subtract", nir, red)
	denominator := binary("Image.add",
		binary("Image.subtract",
			binary("Image.add", nir, binary("Image.multiply", red, imageConstant(6))),
			binary("Image.multiply", blue, imageConstant(7.5)),
		),
		imageConstant(1),
	)
	evi := binary("Image.multiply", binary("Image.divide", numerator, denominator), imageConstant(2.5))
	return rename(evi, domain.IndexEVI)
}

// indexStack is the composite's RGB+NIR bands followed by NDVI, NDWI, EVI.
func indexStack(img valueNode) valueNode {
	stack := selectBands(img, domain.BandRed, domain.BandGreen, domain.BandBlue, domain.BandNIR)
	for _, idx := range []valueNode{
		normalizedDifference(img, domain.BandNIR, domain.BandRed, domain.IndexNDVI),
		normalizedDifference(img, domain.BandGreen, domain.BandNIR, domain.IndexNDWI),
		enhancedVegetationIndex(img),
	} {
		stack = call("Image.addBands", args{"dstImg": stack, "srcImg": idx})
	}
	return stack
}

func sceneCountExpr(collectionID string, q domain.SceneQuery) expression {
	coll := filteredCollection(collectionID, q, regionGeometry(q))
	return newExpression(call("Collection.size", args{"collection": coll}))
}

func regionMeansExpr(collectionID string, q domain.SceneQuery, scaleMeters float64) expression {
	region := regionGeometry(q)
	img := medianComposite(filteredCollection(collectionID, q, region))
	return newExpression(call("Image.reduceRegion", args{
		"image":     indexStack(img),
		"reducer":   call("Reducer.mean", nil),
		"geometry":  region,
		"scale":     constant(scaleMeters),
		"maxPixels": constant(1e9),
	}))
}

func thumbnailExpr(collectionID string, q domain.SceneQuery, spec domain.ThumbnailSpec) expression {
	region := regionGeometry(q)
	img := medianComposite(filteredCollection(collectionID, q, region))
	clipped := call("Image.clipToBoundsAndScale", args{
		"input":    selectBands(img, spec.Bands...),
		"geometry": region,
		"width":    constant(spec.Size),
		"height":   constant(spec.Size),
	})
	return newExpression(call("Image.visualize", args{
		"image": clipped,
		"bands": constant(spec.Bands),
		"min":   constant(spec.Min),
		"max":   constant(spec.Max),
	}))
}
