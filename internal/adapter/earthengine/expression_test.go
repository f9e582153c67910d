package earthengine

import (
	"encoding/json"
	"testing"

	"github.com/couchcryptid/diversity-predict-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect walks a value graph and returns every invoked function name.
func collect(n valueNode, names map[string]int) {
	if n.FunctionInvocationValue == nil {
		return
	}
	names[n.FunctionInvocationValue.FunctionName]++
	for _, a := range n.FunctionInvocationValue.Arguments {
		collect(a, names)
	}
}

func TestSceneCountExpr_Filters(t *testing.T) {
	expr := sceneCountExpr(testCollection, testQuery())
	root := expr.Values[expr.Result]

	names := map[string]int{}
	collect(root, names)

	assert.Equal(t, 3, names["Collection.filter"])
	assert.Equal(t, 1, names["Filter.intersects"])
	assert.Equal(t, 1, names["Filter.dateRangeContains"])
	assert.Equal(t, 1, names["Filter.lessThan"])
	assert.Equal(t, 1, names["ImageCollection.load"])
	assert.Zero(t, names["reduce.median"], "counting needs no composite")

	cloud := root.FunctionInvocationValue.Arguments["collection"].FunctionInvocationValue.Arguments["filter"].FunctionInvocationValue
	assert.Equal(t, "Filter.lessThan", cloud.FunctionName)
	assert.Equal(t, "CLOUDY_PIXEL_PERCENTAGE", cloud.Arguments["leftField"].ConstantValue)
	assert.InDelta(t, 20.0, cloud.Arguments["rightValue"].ConstantValue, 0)
}

func TestRegionGeometry_LonLatOrder(t *testing.T) {
	geom := regionGeometry(testQuery()).FunctionInvocationValue
	require.Equal(t, "Geometry.bounds", geom.FunctionName)

	buffer := geom.Arguments["geometry"].FunctionInvocationValue
	assert.Equal(t, "Geometry.buffer", buffer.FunctionName)
	assert.InDelta(t, 50.0, buffer.Arguments["distance"].ConstantValue, 0)

	point := buffer.Arguments["geometry"].FunctionInvocationValue
	assert.Equal(t, []float64{-75, 40}, point.Arguments["coordinates"].ConstantValue)
}

func TestRegionMeansExpr_Stack(t *testing.T) {
	expr := regionMeansExpr(testCollection, testQuery(), 10)

	names := map[string]int{}
	collect(expr.Values[expr.Result], names)

	assert.Equal(t, 3, names["Image.addBands"])
	assert.Equal(t, 2, names["Image.normalizedDifference"])
	assert.Equal(t, 1, names["Image.divide"])
	assert.GreaterOrEqual(t, names["reduce.median"], 1)
}

func TestRegionMeansExpr_IndexBandNames(t *testing.T) {
	expr := regionMeansExpr(testCollection, testQuery(), 10)
	raw, err := json.Marshal(expr)
	require.NoError(t, err)

	body := string(raw)
	for _, want := range []string{`["B8","B4"]`, `["B3","B8"]`, `["NDVI"]`, `["NDWI"]`, `["EVI"]`, `["B4","B3","B2","B8"]`} {
		assert.Contains(t, body, want)
	}
	assert.Contains(t, body, `"maxPixels":{"constantValue":1000000000}`)
}

func TestThumbnailExpr_ZeroMinIsSent(t *testing.T) {
	expr := thumbnailExpr(testCollection, testQuery(), domain.DefaultExtractOptions().Thumbnail)
	raw, err := json.Marshal(expr)
	require.NoError(t, err)

	assert.Contains(t, string(raw), `"min":{"constantValue":0}`)
	assert.Contains(t, string(raw), `"width":{"constantValue":256}`)
}

// arg returns the named argument of an invocation node.
func arg(t *testing.T, n valueNode, fn, name string) valueNode {
	t.Helper()
	require.NotNil(t, n.FunctionInvocationValue, "want %s, got constant %v", fn, n.ConstantValue)
	require.Equal(t, fn, n.FunctionInvocationValue.FunctionName)
	a, ok := n.FunctionInvocationValue.Arguments[name]
	require.True(t, ok, "%s has no argument %q", fn, name)
	return a
}

func assertBand(t *testing.T, n valueNode, band string) {
	t.Helper()
	assert.Equal(t, []string{band}, arg(t, n, "Image.select", "bandSelectors").ConstantValue)
}

func assertImageConstant(t *testing.T, n valueNode, want float64) {
	t.Helper()
	assert.InDelta(t, want, arg(t, n, "Image.constant", "value").ConstantValue, 0)
}

// EVI = 2.5 * (NIR - RED) / (NIR + 6*RED - 7.5*BLUE + 1)
func TestEnhancedVegetationIndex_Formula(t *testing.T) {
	img := medianComposite(constant("composite"))
	evi := enhancedVegetationIndex(img)

	assert.Equal(t, []string{domain.IndexEVI}, arg(t, evi, "Image.rename", "names").ConstantValue)
	scaled := arg(t, evi, "Image.rename", "input")

	// ratio * 2.5
	ratio := arg(t, scaled, "Image.multiply", "image1")
	assertImageConstant(t, arg(t, scaled, "Image.multiply", "image2"), 2.5)

	// numerator: NIR - RED
	num := arg(t, ratio, "Image.divide", "image1")
	assertBand(t, arg(t, num, "Image.subtract", "image1"), domain.BandNIR)
	assertBand(t, arg(t, num, "Image.subtract", "image2"), domain.BandRed)

	// denominator: ((NIR + 6*RED) - 7.5*BLUE) + 1
	den := arg(t, ratio, "Image.divide", "image2")
	assertImageConstant(t, arg(t, den, "Image.add", "image2"), 1)

	diff := arg(t, den, "Image.add", "image1")
	sum := arg(t, diff, "Image.subtract", "image1")
	assertBand(t, arg(t, sum, "Image.add", "image1"), domain.BandNIR)

	red6 := arg(t, sum, "Image.add", "image2")
	assertBand(t, arg(t, red6, "Image.multiply", "image1"), domain.BandRed)
	assertImageConstant(t, arg(t, red6, "Image.multiply", "image2"), 6)

	blue75 := arg(t, diff, "Image.subtract", "image2")
	assertBand(t, arg(t, blue75, "Image.multiply", "image1"), domain.BandBlue)
	assertImageConstant(t, arg(t, blue75, "Image.multiply", "image2"), 7.5)
}

func TestNormalizedDifference_BandOrder(t *testing.T) {
	img := medianComposite(constant("composite"))

	ndvi := arg(t, normalizedDifference(img, domain.BandNIR, domain.BandRed, domain.IndexNDVI), "Image.rename", "input")
	assert.Equal(t, []string{domain.BandNIR, domain.BandRed}, arg(t, ndvi, "Image.normalizedDifference", "bandNames").ConstantValue)

	ndwi := arg(t, normalizedDifference(img, domain.BandGreen, domain.BandNIR, domain.IndexNDWI), "Image.rename", "input")
	assert.Equal(t, []string{domain.BandGreen, domain.BandNIR}, arg(t, ndwi, "Image.normalizedDifference", "bandNames").ConstantValue)
}
